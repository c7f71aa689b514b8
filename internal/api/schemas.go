package api

import (
	"fmt"
	"time"

	"github.com/framecmp/framecmp/internal/compare"
	"github.com/framecmp/framecmp/internal/session"
)

type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	UptimeS    int64  `json:"uptime_s"`
	InstanceID string `json:"instance_id"`
}

type StatusResponse struct {
	State          string         `json:"state"`
	SessionsCount  int            `json:"sessions_count"`
	JanitorPaused  bool           `json:"janitor_paused"`
	JanitorRunning bool           `json:"janitor_running"`
	Tools          *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpeg      ToolResponse `json:"ffmpeg"`
	FFprobe     ToolResponse `json:"ffprobe"`
	CanExtract  bool         `json:"can_extract"`
	LastProbeAt string       `json:"last_probe_at,omitempty"`
}

type ToolResponse struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type VideoResponse struct {
	Kind       string  `json:"kind"`
	Filename   string  `json:"filename"`
	Size       int64   `json:"size"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Codec      string  `json:"codec,omitempty"`
	FrameRate  float64 `json:"frame_rate"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
	URL        string  `json:"url"`
}

type SessionResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	MaxIndex  int             `json:"max_index"`
	Videos    []VideoResponse `json:"videos"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type CompareResponse struct {
	Index        int     `json:"index"`
	MaxIndex     int     `json:"max_index"`
	MSE          float64 `json:"mse"`
	SSIM         float64 `json:"ssim"`
	MSEText      string  `json:"mse_text"`
	SSIMText     string  `json:"ssim_text"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FakeFrameURL string  `json:"fake_frame_url"`
	RealFrameURL string  `json:"real_frame_url"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func FrameURL(sessionID string, kind session.Kind, index int) string {
	return fmt.Sprintf("/sessions/%s/frames/%s/%d", sessionID, kind, index)
}

func VideoURL(sessionID string, kind session.Kind) string {
	return fmt.Sprintf("/sessions/%s/videos/%s", sessionID, kind)
}

func SessionToResponse(s *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		Status:    s.Status,
		Error:     s.Error,
		MaxIndex:  s.MaxIndex(),
		Videos:    make([]VideoResponse, 0, len(s.Videos)),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if s.Status == session.StatusFailed || s.Status == session.StatusEmpty {
		resp.ErrorCode = failureCode(s.Reason)
	}
	for _, v := range s.Videos {
		resp.Videos = append(resp.Videos, VideoResponse{
			Kind:       string(v.Kind),
			Filename:   v.Filename,
			Size:       v.Size,
			Width:      v.Width,
			Height:     v.Height,
			Codec:      v.Codec,
			FrameRate:  v.FrameRate,
			Duration:   v.Duration,
			FrameCount: v.FrameCount,
			URL:        VideoURL(s.ID, v.Kind),
		})
	}
	return resp
}

func CompareToResponse(sessionID string, maxIndex int, r *compare.Result) CompareResponse {
	resp := CompareResponse{
		Index:        r.Index,
		MaxIndex:     maxIndex,
		MSE:          r.MSE,
		SSIM:         r.SSIM,
		MSEText:      r.FormatMSE(),
		SSIMText:     r.FormatSSIM(),
		FakeFrameURL: FrameURL(sessionID, session.KindFake, r.Index),
		RealFrameURL: FrameURL(sessionID, session.KindReal, r.Index),
	}
	if r.Fake != nil {
		resp.Width, resp.Height = r.Fake.Bounds().Dx(), r.Fake.Bounds().Dy()
	}
	return resp
}
