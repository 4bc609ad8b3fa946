package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/kozaktomas/face-swap/internal/swap"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Run a single face swap from the command line",
}

var swapImageCmd = &cobra.Command{
	Use:   "image <source> <target>",
	Short: "Swap the source face into a target image",
	Long: `Swap the face found in the source image into the target image.
The result is written to the output directory as <target>_swapped.jpg.`,
	Args: cobra.ExactArgs(2),
	RunE: runSwapImage,
}

var swapVideosCmd = &cobra.Command{
	Use:   "videos <source> <video>...",
	Short: "Swap the source face into one or more videos",
	Long: `Register the source face once and swap it into each target video in
order. Processing stops at the first failure; videos finished before it are
still collected into the output directory.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSwapVideos,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.AddCommand(swapImageCmd)
	swapCmd.AddCommand(swapVideosCmd)

	for _, c := range []*cobra.Command{swapImageCmd, swapVideosCmd} {
		c.Flags().Bool("enhance", false, "Run face enhancement on the result")
		c.Flags().String("output", "", "Output directory (default from SWAP_OUTPUT_DIR)")
		c.Flags().Bool("json", false, "Output result as JSON")
		c.Flags().Bool("no-progress", false, "Disable the progress bar")
	}
}

// signalContext returns a context cancelled on Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadSwapConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if out := mustGetString(cmd, "output"); out != "" {
		cfg.Swap.OutputDir = out
	}
	return cfg
}

// newProgressBar renders orchestrator progress for one target count.
func newProgressBar(total int, description string) func(swap.ProgressInfo) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(total > 1),
		progressbar.OptionFullWidth(),
	)
	return func(info swap.ProgressInfo) {
		if info.Message != "" {
			bar.Describe(info.Message)
		}
		if info.Total > 0 {
			_ = bar.Set(info.Current)
		}
	}
}

func runSwapImage(cmd *cobra.Command, args []string) error {
	cfg := loadSwapConfig(cmd)

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read source image: %w", err)
	}
	target, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read target image: %w", err)
	}

	req := &swap.Request{
		Mode:    swap.ModeImage,
		Source:  source,
		Target:  &swap.ImageInput{Name: filepath.Base(args[1]), Data: target},
		Enhance: mustGetBool(cmd, "enhance"),
	}
	return executeSwap(cmd, cfg, req, 1)
}

func runSwapVideos(cmd *cobra.Command, args []string) error {
	cfg := loadSwapConfig(cmd)

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read source image: %w", err)
	}

	req := &swap.Request{
		Mode:    swap.ModeMultiVideo,
		Source:  source,
		Enhance: mustGetBool(cmd, "enhance"),
	}
	for _, path := range args[1:] {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("target video: %w", err)
		}
		req.Videos = append(req.Videos, swap.VideoFromFile(path))
	}
	return executeSwap(cmd, cfg, req, len(req.Videos))
}

func executeSwap(cmd *cobra.Command, cfg *config.Config, req *swap.Request, total int) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx, cancel := signalContext()
	defer cancel()

	store, closer, err := openFaceStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	orch, _ := newOrchestrator(cfg, store, false)

	if !jsonOutput && !mustGetBool(cmd, "no-progress") {
		req.OnProgress = newProgressBar(total, "Swapping")
	}

	result := orch.Run(ctx, req)

	if jsonOutput {
		if err := outputJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Println()
		fmt.Println(result.Message)
		for _, out := range result.Outputs {
			fmt.Printf("  %s\n", out)
		}
		if result.Partial {
			fmt.Printf("Stopped at %s; earlier outputs were kept.\n", result.FailedTarget)
		}
	}

	if !result.OK() {
		return errors.New(string(result.Status))
	}
	return nil
}
