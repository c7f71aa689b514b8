package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/framecmp/framecmp/internal/compare"
	"github.com/framecmp/framecmp/internal/logging"
	"github.com/framecmp/framecmp/internal/pipeline"
)

type compareOptions struct {
	FakePath string
	RealPath string
	Index    int
}

var compareOpts compareOptions

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Score two videos frame by frame without starting the UI",
	Example: `  framecmp compare --fake out.mp4 --real src.mp4
  framecmp compare --fake out.mp4 --real src.mp4 --index 12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompare(cmd.Context(), compareOpts)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareOpts.FakePath, "fake", "", "Path to the generated video")
	compareCmd.Flags().StringVar(&compareOpts.RealPath, "real", "", "Path to the reference video")
	compareCmd.Flags().IntVarP(&compareOpts.Index, "index", "i", 0, "Frame index to compare (1-based, 0 for every frame)")
	compareCmd.MarkFlagRequired("fake")
	compareCmd.MarkFlagRequired("real")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(ctx context.Context, opts compareOptions) error {
	if opts.Index < 0 {
		return fmt.Errorf("invalid index %d", opts.Index)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Results go to stdout; keep log lines out of the way.
	logger := logging.New(os.Stderr, cfg.LogLevel(), "console")
	ffmpeg := newFFmpeg(cfg, logging.WithComponent(logger, "ffmpeg"))

	workDir, err := os.MkdirTemp("", "framecmp-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fake, err := extractWithProgress(ctx, ffmpeg, opts.FakePath, filepath.Join(workDir, "fake"), "Extracting fake")
	if err != nil {
		return fmt.Errorf("fake video: %w", err)
	}
	real, err := extractWithProgress(ctx, ffmpeg, opts.RealPath, filepath.Join(workDir, "real"), "Extracting real")
	if err != nil {
		return fmt.Errorf("real video: %w", err)
	}

	maxIndex := compare.MaxIndex(fake, real)
	if len(fake) != len(real) {
		logger.Warn("frame counts differ, comparing the common prefix",
			"fake", len(fake),
			"real", len(real),
		)
	}

	first, last := 1, maxIndex
	if opts.Index != 0 {
		first, last = opts.Index, opts.Index
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FRAME\tMSE\tSSIM")

	var sumMSE, sumSSIM float64
	for i := first; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := compare.Compare(i, fake, real)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", res.Index, res.FormatMSE(), res.FormatSSIM())
		sumMSE += res.MSE
		sumSSIM += res.SSIM
	}

	if n := last - first + 1; n > 1 {
		fmt.Fprintf(w, "mean\t%.2f\t%.2f\n", sumMSE/float64(n), sumSSIM/float64(n))
	}
	return w.Flush()
}

func extractWithProgress(ctx context.Context, ffmpeg pipeline.FFmpeg, videoPath, outDir, label string) (compare.FrameSequence, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	total := -1
	if probe, err := ffmpeg.Probe(ctx, videoPath); err == nil && probe.NumFrames > 0 {
		total = probe.NumFrames
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	defer fmt.Fprintln(os.Stderr)

	frames, err := ffmpeg.ExtractFrames(ctx, videoPath, outDir, func(n int) {
		bar.Set(n)
	})
	if err != nil {
		return nil, err
	}
	bar.Finish()
	return compare.FrameSequence(frames), nil
}
