package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got, want := buf.String(), " test data"; got != want {
		t.Errorf("after overflow got %q, want %q", got, want)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCollectFrames_StopsAtGap(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "5.jpg", "1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got := collectFrames(dir, "jpg")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (%v)", len(got), got)
	}
	for i, p := range got {
		if want := filepath.Join(dir, fmt.Sprintf("%d.jpg", i+1)); p != want {
			t.Errorf("frame %d = %q, want %q", i, p, want)
		}
	}
}

func TestScanProgress(t *testing.T) {
	in := strings.Join([]string{
		"frame=1", "fps=0.0", "progress=continue",
		"frame=7", "progress=continue",
		"frame=bogus",
		"frame=10", "progress=end",
	}, "\n")

	var seen []int
	scanProgress(strings.NewReader(in), func(n int) { seen = append(seen, n) })

	want := []int{1, 7, 10}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("progress = %v, want %v", seen, want)
	}

	// nil callback must still consume the stream.
	scanProgress(strings.NewReader(in), nil)
}

func TestNewRealFFmpeg_Defaults(t *testing.T) {
	f := NewRealFFmpeg(Config{Format: ".PNG"})
	if f.Format() != "png" {
		t.Errorf("Format() = %q, want png", f.Format())
	}
	if f.ffmpeg != "ffmpeg" || f.ffprobe != "ffprobe" {
		t.Errorf("binaries = %q/%q, want ffmpeg/ffprobe", f.ffmpeg, f.ffprobe)
	}
	if NewRealFFmpeg(Config{}).Format() != "jpg" {
		t.Error("default format should be jpg")
	}
}

func TestProbe_MissingFile(t *testing.T) {
	f := NewRealFFmpeg(Config{})
	_, err := f.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrDecodeOpen) {
		t.Fatalf("Probe() error = %v, want ErrDecodeOpen", err)
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not on PATH", bin)
		}
	}
}

// makeVideo renders a synthetic clip with ffmpeg's lavfi sources.
func makeVideo(t *testing.T, path string, args ...string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", append([]string{"-nostdin", "-v", "error", "-y"}, append(args, path)...)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("render %s: %v: %s", filepath.Base(path), err, out)
	}
}

func testFFmpeg() *RealFFmpeg {
	return NewRealFFmpeg(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestExtractFrames_CountAndNaming(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	makeVideo(t, video, "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10", "-frames:v", "10", "-pix_fmt", "yuv420p")

	var last int
	frames, err := testFFmpeg().ExtractFrames(context.Background(), video, filepath.Join(dir, "frames"), func(n int) { last = n })
	if err != nil {
		t.Fatalf("ExtractFrames() error = %v", err)
	}
	if len(frames) != 10 {
		t.Fatalf("len(frames) = %d, want 10", len(frames))
	}
	for i, p := range frames {
		if got, want := filepath.Base(p), fmt.Sprintf("%d.jpg", i+1); got != want {
			t.Errorf("frame %d name = %q, want %q", i, got, want)
		}
	}
	if last != 10 {
		t.Errorf("last progress = %d, want 10", last)
	}
}

func TestExtractFrames_Probe(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	makeVideo(t, video, "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10", "-frames:v", "5", "-pix_fmt", "yuv420p")

	res, err := testFFmpeg().Probe(context.Background(), video)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !res.HasVideo || res.Width != 64 || res.Height != 48 {
		t.Errorf("probe = %+v, want 64x48 video", res)
	}
	if res.FrameRate != 10 {
		t.Errorf("FrameRate = %v, want 10", res.FrameRate)
	}
}

func TestExtractFrames_CorruptVideo(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	video := filepath.Join(dir, "broken.mp4")
	if err := os.WriteFile(video, bytes.Repeat([]byte("garbage "), 512), 0644); err != nil {
		t.Fatal(err)
	}

	frames, err := testFFmpeg().ExtractFrames(context.Background(), video, filepath.Join(dir, "frames"), nil)
	if !errors.Is(err, ErrDecodeOpen) {
		t.Fatalf("error = %v, want ErrDecodeOpen", err)
	}
	if errors.Is(err, ErrEmptyExtraction) {
		t.Fatal("corrupt input must not look like an empty extraction")
	}
	if len(frames) != 0 {
		t.Errorf("frames = %v, want none", frames)
	}
}

func TestExtractFrames_NoVideoStream(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	video := filepath.Join(dir, "silence.wav")
	makeVideo(t, video, "-f", "lavfi", "-i", "anullsrc=r=8000:cl=mono", "-t", "0.5")

	frames, err := testFFmpeg().ExtractFrames(context.Background(), video, filepath.Join(dir, "frames"), nil)
	if !errors.Is(err, ErrEmptyExtraction) {
		t.Fatalf("error = %v, want ErrEmptyExtraction", err)
	}
	if len(frames) != 0 {
		t.Errorf("frames = %v, want none", frames)
	}
}

const stubProbeJSON = `{"streams":[{"codec_name":"h264","width":4,"height":4,"avg_frame_rate":"10/1","nb_frames":"2"}],"format":{"duration":"0.2"}}`

// stubFFmpeg returns a RealFFmpeg whose ffprobe prints a single video stream
// and whose ffmpeg runs ffmpegBody with $dir set to the output directory.
func stubFFmpeg(t *testing.T, ffmpegBody string) *RealFFmpeg {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binaries are shell scripts")
	}
	bin := t.TempDir()
	ffprobe := filepath.Join(bin, "ffprobe")
	ffmpeg := filepath.Join(bin, "ffmpeg")
	writeScript(t, ffprobe, "echo '"+stubProbeJSON+"'\n")
	writeScript(t, ffmpeg, "for a; do out=$a; done\ndir=$(dirname \"$out\")\n"+ffmpegBody)

	return NewRealFFmpeg(Config{
		FFmpegPath:  ffmpeg,
		FFprobePath: ffprobe,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
}

func stubInput(t *testing.T) (video, outDir string) {
	t.Helper()
	dir := t.TempDir()
	video = filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("not inspected by the stub"), 0644); err != nil {
		t.Fatal(err)
	}
	return video, filepath.Join(dir, "frames")
}

const writeTwoFrames = `printf x > "$dir/1.jpg"
printf x > "$dir/2.jpg"
echo frame=2
echo progress=end
`

func TestExtractFrames_IgnoresStaleFrames(t *testing.T) {
	f := stubFFmpeg(t, writeTwoFrames)
	video, outDir := stubInput(t)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(filepath.Join(outDir, fmt.Sprintf("%d.jpg", i)), []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	keep := filepath.Join(outDir, "notes.jpg")
	if err := os.WriteFile(keep, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var last int
	frames, err := f.ExtractFrames(context.Background(), video, outDir, func(n int) { last = n })
	if err != nil {
		t.Fatalf("ExtractFrames() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2 (%v)", len(frames), frames)
	}
	if last != 2 {
		t.Errorf("last progress = %d, want 2", last)
	}
	for _, i := range []int{3, 4, 5} {
		if _, err := os.Stat(filepath.Join(outDir, fmt.Sprintf("%d.jpg", i))); !os.IsNotExist(err) {
			t.Errorf("stale frame %d still present", i)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("non-frame file removed: %v", err)
	}
}

func TestExtractFrames_FailureWithoutFramesIsEmpty(t *testing.T) {
	f := stubFFmpeg(t, "echo 'decode error' >&2\nexit 1\n")
	video, outDir := stubInput(t)

	frames, err := f.ExtractFrames(context.Background(), video, outDir, nil)
	if !errors.Is(err, ErrEmptyExtraction) {
		t.Fatalf("error = %v, want ErrEmptyExtraction", err)
	}
	if !strings.Contains(err.Error(), "decode error") {
		t.Errorf("error %q should carry ffmpeg stderr", err)
	}
	if len(frames) != 0 {
		t.Errorf("frames = %v, want none", frames)
	}
}

func TestExtractFrames_PartialDecodeKeepsFrames(t *testing.T) {
	f := stubFFmpeg(t, writeTwoFrames+"echo 'truncated stream' >&2\nexit 1\n")
	video, outDir := stubInput(t)

	frames, err := f.ExtractFrames(context.Background(), video, outDir, nil)
	if err != nil {
		t.Fatalf("ExtractFrames() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
}

func TestExtractFrames_SuccessWithoutFramesIsEmpty(t *testing.T) {
	f := stubFFmpeg(t, "echo progress=end\n")
	video, outDir := stubInput(t)

	_, err := f.ExtractFrames(context.Background(), video, outDir, nil)
	if !errors.Is(err, ErrEmptyExtraction) {
		t.Fatalf("error = %v, want ErrEmptyExtraction", err)
	}
}

func TestClearFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.jpg", "12.jpg", "1.png", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := clearFrames(dir, "jpg"); err != nil {
		t.Fatalf("clearFrames() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	if got, want := strings.Join(left, ","), "1.png,cover.jpg"; got != want {
		t.Errorf("remaining = %s, want %s", got, want)
	}
}
