package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/framecmp/framecmp/internal/config"
	"github.com/framecmp/framecmp/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:     "framecmp",
	Short:   "Compare a generated video against its source frame by frame",
	Version: config.Version,
	// With no subcommand the service starts, as an installed tray app would.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), serveOpts)
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.EnvConfig, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newFFmpeg(cfg config.Config, logger *slog.Logger) *pipeline.RealFFmpeg {
	return pipeline.NewRealFFmpeg(pipeline.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Format:      cfg.FrameFormat(),
		Timeout:     cfg.ExtractTimeout(),
		Logger:      logger,
	})
}
