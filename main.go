package main

import "github.com/kozaktomas/face-swap/cmd"

func main() {
	cmd.Execute()
}
