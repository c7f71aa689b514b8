package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/framecmp/framecmp/internal/logging"
	"github.com/framecmp/framecmp/internal/pipeline"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that ffmpeg and ffprobe are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel(), "console")

	caps, err := newFFmpeg(cfg, logger).Capabilities(ctx)
	if caps == nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSTATUS\tPATH\tVERSION")
	printTool(w, "ffmpeg", caps.FFmpeg)
	printTool(w, "ffprobe", caps.FFprobe)
	if err := w.Flush(); err != nil {
		return err
	}

	if !caps.CanExtract() {
		return errors.New("ffmpeg toolchain incomplete; install ffmpeg or set FRAMECMP_FFMPEG / FRAMECMP_FFPROBE")
	}
	return nil
}

func printTool(w *tabwriter.Writer, name string, info pipeline.ToolInfo) {
	status := "ok"
	if !info.Available {
		status = "missing"
	}
	path := info.Path
	if path == "" {
		path = "-"
	}
	version := info.Version
	if version == "" {
		version = info.Error
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, status, path, version)
}
