package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024

// FFmpeg is the decoding collaborator used by sessions and the CLI.
type FFmpeg interface {
	Probe(ctx context.Context, filePath string) (*ProbeResult, error)

	// ExtractFrames decodes every frame of videoPath into outputDir as
	// <n>.<format>, n starting at 1, and returns the paths in decode order.
	// progress, when non-nil, receives the running frame count.
	ExtractFrames(ctx context.Context, videoPath, outputDir string, progress func(frames int)) ([]string, error)

	Capabilities(ctx context.Context) (*Capabilities, error)
	Format() string
}

type Config struct {
	FFmpegPath  string // empty = look up "ffmpeg" on PATH
	FFprobePath string // empty = look up "ffprobe" on PATH
	Format      string // still image extension, default "jpg"
	Timeout     time.Duration
	Logger      *slog.Logger
}

// RealFFmpeg shells out to the ffmpeg and ffprobe binaries.
type RealFFmpeg struct {
	ffmpeg  string
	ffprobe string
	format  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRealFFmpeg(cfg Config) *RealFFmpeg {
	f := &RealFFmpeg{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		format:  strings.TrimPrefix(strings.ToLower(cfg.Format), "."),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	if f.format == "" {
		f.format = "jpg"
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f
}

func (f *RealFFmpeg) Format() string {
	return f.format
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		BitRate      string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe opens filePath with ffprobe. Any failure to open or parse the
// container is reported as ErrDecodeOpen.
func (f *RealFFmpeg) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeOpen, err)
	}

	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,nb_frames,bit_rate:format=duration",
		"-of", "json",
		filePath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffprobe: %v: %s", ErrDecodeOpen, err, truncate(strings.TrimSpace(stderr.String()), 512))
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", ErrDecodeOpen, err)
	}

	res := &ProbeResult{}
	res.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	if len(parsed.Streams) > 0 {
		s := parsed.Streams[0]
		res.HasVideo = true
		res.Codec = s.CodecName
		res.Width = s.Width
		res.Height = s.Height
		res.FrameRate = parseRate(s.AvgFrameRate)
		res.NumFrames, _ = strconv.Atoi(s.NbFrames)
		res.Bitrate, _ = strconv.ParseInt(s.BitRate, 10, 64)
	}
	return res, nil
}

func (f *RealFFmpeg) ExtractFrames(ctx context.Context, videoPath, outputDir string, progress func(frames int)) ([]string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	probe, err := f.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if !probe.HasVideo {
		return nil, fmt.Errorf("%w: container has no video stream", ErrEmptyExtraction)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	// Frames left by an earlier run would otherwise extend this sequence.
	if err := clearFrames(outputDir, f.format); err != nil {
		return nil, fmt.Errorf("clear frames dir: %w", err)
	}

	args := []string{
		"-nostdin",
		"-v", "error",
		"-i", videoPath,
		"-map", "0:v:0",
		"-vsync", "0",
		"-start_number", "1",
		"-progress", "pipe:1",
		"-y",
	}
	if f.format == "jpg" || f.format == "jpeg" {
		args = append(args, "-q:v", "2")
	}
	args = append(args, filepath.Join(outputDir, "%d."+f.format))

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrDecodeOpen, err)
	}

	scanProgress(stdout, progress)
	runErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	frames := collectFrames(outputDir, f.format)

	if runErr != nil {
		if len(frames) == 0 {
			// The container opened, so nothing decodable is an empty result.
			return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrEmptyExtraction, runErr, truncate(strings.TrimSpace(stderr.String()), 512))
		}
		// Decoding stopped partway; what was decoded is the sequence.
		f.logger.Warn("ffmpeg stopped before end of stream",
			"error", runErr,
			"frames", len(frames),
			"stderr_tail", truncate(stderr.String(), 512),
		)
	}

	if len(frames) == 0 {
		return nil, ErrEmptyExtraction
	}

	f.logger.Info("frames extracted",
		"count", len(frames),
		"width", probe.Width,
		"height", probe.Height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return frames, nil
}

// Capabilities locates both executables and records their version banner.
func (f *RealFFmpeg) Capabilities(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{
		FFmpeg:   toolInfo(ctx, f.ffmpeg),
		FFprobe:  toolInfo(ctx, f.ffprobe),
		ProbedAt: time.Now(),
	}
	if !caps.CanExtract() {
		return caps, errors.New("ffmpeg toolchain unavailable")
	}
	return caps, nil
}

func toolInfo(ctx context.Context, name string) ToolInfo {
	path, err := exec.LookPath(name)
	if err != nil {
		return ToolInfo{Error: err.Error()}
	}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ToolInfo{Path: path, Error: err.Error()}
	}

	line, _, _ := strings.Cut(string(out), "\n")
	return ToolInfo{Available: true, Path: path, Version: strings.TrimSpace(line)}
}

// scanProgress reads ffmpeg's key=value progress stream and reports each
// frame= update.
func scanProgress(r io.Reader, progress func(frames int)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok || key != "frame" || progress == nil {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			progress(n)
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	io.Copy(io.Discard, r)
}

// collectFrames returns 1.<ext>, 2.<ext>, ... up to the first gap.
func collectFrames(dir, ext string) []string {
	var frames []string
	for i := 1; ; i++ {
		p := filepath.Join(dir, strconv.Itoa(i)+"."+ext)
		if _, err := os.Stat(p); err != nil {
			return frames
		}
		frames = append(frames, p)
	}
}

// clearFrames removes every <n>.<ext> file from dir.
func clearFrames(dir, ext string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*."+ext))
	if err != nil {
		return err
	}
	for _, p := range matches {
		if _, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(p), "."+ext)); err != nil {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
