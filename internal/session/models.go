package session

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindFake Kind = "fake"
	KindReal Kind = "real"
)

// Kinds lists both sides in display order.
var Kinds = []Kind{KindFake, KindReal}

func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(s)) {
	case KindFake:
		return KindFake, true
	case KindReal:
		return KindReal, true
	}
	return "", false
}

const (
	StatusExtracting = "extracting"
	StatusReady      = "ready"
	StatusFailed     = "failed"
	StatusEmpty      = "empty"
)

// Failure reasons recorded with a failed or empty session.
const (
	ReasonDecodeOpen      = "decode_open"
	ReasonEmptyExtraction = "empty_extraction"
	ReasonBadUpload       = "bad_upload"
	ReasonInterrupted     = "interrupted"
	ReasonInternal        = "internal"
)

type Session struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	WorkDir   string    `json:"-"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Videos []*Video `json:"videos,omitempty"`
}

// Video returns the session's video of the given kind, or nil.
func (s *Session) Video(kind Kind) *Video {
	for _, v := range s.Videos {
		if v.Kind == kind {
			return v
		}
	}
	return nil
}

// MaxIndex is the largest frame index both videos can serve.
func (s *Session) MaxIndex() int {
	f, r := s.Video(KindFake), s.Video(KindReal)
	if f == nil || r == nil {
		return 0
	}
	return min(f.FrameCount, r.FrameCount)
}

type Video struct {
	SessionID  string  `json:"-"`
	Kind       Kind    `json:"kind"`
	Filename   string  `json:"filename"`
	Path       string  `json:"-"`
	Size       int64   `json:"size"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Codec      string  `json:"codec,omitempty"`
	FrameRate  float64 `json:"frame_rate"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
}

// VideoExtensions is the upload allow-list.
var VideoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
