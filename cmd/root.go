package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/kozaktomas/face-swap/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-swap",
	Short: "Swap a source face into images and videos",
	Long: `Face Swap stages uploaded media, drives a face2face engine sidecar and
collects the swapped images and videos into an output directory. It can run
as a web service or as a one-shot command.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(cfg.Log.Level, cfg.Log.Format)
}
