// Package pipeline drives the ffmpeg/ffprobe executables that decode uploaded
// videos into numbered still frames.
package pipeline

import (
	"errors"
	"time"
)

var (
	// ErrDecodeOpen means the container could not be opened for decoding.
	ErrDecodeOpen = errors.New("cannot open video for decoding")

	// ErrEmptyExtraction means the video opened but yielded no frames.
	ErrEmptyExtraction = errors.New("no frames extracted from video")
)

// ProbeResult describes the first video stream of a container.
type ProbeResult struct {
	HasVideo  bool
	Duration  float64
	Width     int
	Height    int
	Codec     string
	Bitrate   int64
	FrameRate float64
	NumFrames int
}

// Capabilities reports which executables are usable, as seen by the doctor.
type Capabilities struct {
	FFmpeg   ToolInfo  `json:"ffmpeg"`
	FFprobe  ToolInfo  `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// ToolInfo is the availability of a single executable.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CanExtract returns true when both executables are present.
func (c *Capabilities) CanExtract() bool {
	return c != nil && c.FFmpeg.Available && c.FFprobe.Available
}
