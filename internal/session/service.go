package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/framecmp/framecmp/internal/compare"
	"github.com/framecmp/framecmp/internal/logging"
	"github.com/framecmp/framecmp/internal/metrics"
	"github.com/framecmp/framecmp/internal/pipeline"
	"github.com/framecmp/framecmp/internal/similarity"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrBadUpload = errors.New("invalid upload")
	ErrNotReady  = errors.New("session not ready")
)

const filenameMaxLen = 120

// Upload is one incoming video. Filename is only used for its extension
// and for display.
type Upload struct {
	Filename string
	Body     io.Reader
}

type SessionService interface {
	CreateSession(ctx context.Context, fake, real Upload) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	CountSessions(ctx context.Context) (int, error)
	DeleteSession(ctx context.Context, id string) error
	Compare(ctx context.Context, id string, index int) (*compare.Result, error)
	Frame(ctx context.Context, id string, kind Kind, index int) (*image.Gray, error)
	VideoPath(ctx context.Context, id string, kind Kind) (string, error)
}

type Service struct {
	repo    Repository
	ffmpeg  pipeline.FFmpeg
	baseDir string
	logger  *slog.Logger
}

func NewService(repo Repository, ffmpeg pipeline.FFmpeg, baseDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, ffmpeg: ffmpeg, baseDir: baseDir, logger: logger}
}

// CreateSession stores both uploads under a fresh session directory and
// extracts their frame sequences. On any failure the directory is removed
// and the session row is kept with status failed or empty.
func (s *Service) CreateSession(ctx context.Context, fake, real Upload) (*Session, error) {
	ups := map[Kind]Upload{KindFake: fake, KindReal: real}
	for _, kind := range Kinds {
		up := ups[kind]
		if up.Body == nil {
			return nil, fmt.Errorf("%w: missing %s video", ErrBadUpload, kind)
		}
		if !IsVideoFile(up.Filename) {
			return nil, fmt.Errorf("%w: %s video %q has unsupported extension", ErrBadUpload, kind, up.Filename)
		}
	}

	now := time.Now()
	sess := &Session{
		ID:        NewID(),
		Status:    StatusExtracting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sess.WorkDir = filepath.Join(s.baseDir, sess.ID)

	if err := os.MkdirAll(sess.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		os.RemoveAll(sess.WorkDir)
		return nil, err
	}
	s.refreshActive(ctx)

	logger := logging.WithSessionID(s.logger, sess.ID)
	logger.Info("session created", "fake", fake.Filename, "real", real.Filename)

	videos, frames, err := s.ingest(ctx, sess, fake, real)
	if err != nil {
		s.fail(ctx, sess, err)
		logger.Warn("session extraction failed", "status", sess.Status, "error", err)
		return sess, err
	}

	for _, kind := range Kinds {
		if err := s.repo.UpsertVideo(ctx, videos[kind]); err != nil {
			s.fail(ctx, sess, err)
			return sess, err
		}
		if err := s.repo.InsertFrames(ctx, sess.ID, kind, frames[kind]); err != nil {
			s.fail(ctx, sess, err)
			return sess, err
		}
	}

	if err := s.repo.UpdateSessionStatus(ctx, sess.ID, StatusReady, "", ""); err != nil {
		s.fail(ctx, sess, err)
		return sess, err
	}
	sess.Status = StatusReady
	sess.Videos = []*Video{videos[KindFake], videos[KindReal]}

	logger.Info("session ready",
		"fake_frames", videos[KindFake].FrameCount,
		"real_frames", videos[KindReal].FrameCount,
		"max_index", sess.MaxIndex(),
	)
	return sess, nil
}

func (s *Service) ingest(ctx context.Context, sess *Session, fake, real Upload) (map[Kind]*Video, map[Kind][]string, error) {
	videos := make(map[Kind]*Video, 2)
	frames := make(map[Kind][]string, 2)

	ups := map[Kind]Upload{KindFake: fake, KindReal: real}
	for _, kind := range Kinds {
		v, err := s.saveUpload(sess, kind, ups[kind])
		if err != nil {
			return nil, nil, err
		}

		probe, err := s.ffmpeg.Probe(ctx, v.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s video: %w", kind, err)
		}
		v.Width, v.Height = probe.Width, probe.Height
		v.Codec = probe.Codec
		v.FrameRate = probe.FrameRate
		v.Duration = probe.Duration

		start := time.Now()
		seq, err := s.ffmpeg.ExtractFrames(ctx, v.Path, filepath.Join(sess.WorkDir, "frames", string(kind)), nil)
		if err != nil {
			metrics.ExtractionDuration.WithLabelValues(extractionOutcome(err)).Observe(time.Since(start).Seconds())
			return nil, nil, fmt.Errorf("%s video: %w", kind, err)
		}
		metrics.ExtractionDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		metrics.FramesExtractedTotal.WithLabelValues(string(kind)).Add(float64(len(seq)))

		v.FrameCount = len(seq)
		videos[kind] = v
		frames[kind] = seq
	}
	return videos, frames, nil
}

func (s *Service) saveUpload(sess *Session, kind Kind, up Upload) (*Video, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	path := filepath.Join(sess.WorkDir, string(kind)+ext)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("store %s video: %w", kind, err)
	}
	defer f.Close()

	n, err := io.Copy(f, up.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s video: %v", ErrBadUpload, kind, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s video is empty", ErrBadUpload, kind)
	}

	return &Video{
		SessionID: sess.ID,
		Kind:      kind,
		Filename:  SanitizeFilename(up.Filename, filenameMaxLen),
		Path:      path,
		Size:      n,
	}, nil
}

func (s *Service) fail(ctx context.Context, sess *Session, cause error) {
	sess.Status = StatusFailed
	sess.Reason = failureReason(cause)
	if sess.Reason == ReasonEmptyExtraction {
		sess.Status = StatusEmpty
	}
	sess.Error = truncate(cause.Error(), 512)

	if err := os.RemoveAll(sess.WorkDir); err != nil {
		s.logger.Warn("failed to remove session dir", "session_id", sess.ID, "error", err)
	}
	if err := s.repo.UpdateSessionStatus(context.WithoutCancel(ctx), sess.ID, sess.Status, sess.Reason, sess.Error); err != nil {
		s.logger.Error("failed to record session failure", "session_id", sess.ID, "error", err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrDecodeOpen):
		return ReasonDecodeOpen
	case errors.Is(err, pipeline.ErrEmptyExtraction):
		return ReasonEmptyExtraction
	case errors.Is(err, ErrBadUpload):
		return ReasonBadUpload
	default:
		return ReasonInternal
	}
}

func extractionOutcome(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrDecodeOpen):
		return "decode_open_error"
	case errors.Is(err, pipeline.ErrEmptyExtraction):
		return "empty"
	default:
		return "error"
	}
}

func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}

	sess.Videos, err = s.repo.ListVideos(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns the most recent sessions with their videos loaded.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	sessions, err := s.repo.ListSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Videos, err = s.repo.ListVideos(ctx, sess.ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (s *Service) CountSessions(ctx context.Context) (int, error) {
	return s.repo.CountSessions(ctx)
}

// DeleteSession removes the session directory and its rows.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	return s.remove(ctx, sess)
}

func (s *Service) remove(ctx context.Context, sess *Session) error {
	if err := os.RemoveAll(sess.WorkDir); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	if err := s.repo.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	s.refreshActive(ctx)
	s.logger.Info("session deleted", "session_id", sess.ID)
	return nil
}

// PurgeBefore deletes every session created before cutoff and returns how
// many were removed. Sessions still extracting are left alone.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	sessions, err := s.repo.ListSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sess := range sessions {
		if sess.Status == StatusExtracting {
			continue
		}
		if err := s.remove(ctx, sess); err != nil {
			s.logger.Warn("failed to purge session", "session_id", sess.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Sequences returns the cached frame sequences of a ready session.
func (s *Service) Sequences(ctx context.Context, id string) (fake, real compare.FrameSequence, err error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrNotFound
	}

	switch sess.Status {
	case StatusReady:
	case StatusEmpty:
		return nil, nil, fmt.Errorf("%w: %s", pipeline.ErrEmptyExtraction, sess.Error)
	default:
		return nil, nil, fmt.Errorf("%w: status %s", ErrNotReady, sess.Status)
	}

	fake, err = s.repo.GetFrames(ctx, id, KindFake)
	if err != nil {
		return nil, nil, err
	}
	real, err = s.repo.GetFrames(ctx, id, KindReal)
	if err != nil {
		return nil, nil, err
	}
	return fake, real, nil
}

// Compare scores frame index of both videos of a session.
func (s *Service) Compare(ctx context.Context, id string, index int) (*compare.Result, error) {
	fake, real, err := s.Sequences(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := compare.Compare(index, fake, real)
	metrics.ComparisonDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ComparisonsTotal.WithLabelValues(comparisonOutcome(err)).Inc()
		return nil, err
	}
	metrics.ComparisonsTotal.WithLabelValues("success").Inc()

	s.logger.Debug("frames compared", "session_id", id, "index", index, "mse", res.MSE, "ssim", res.SSIM)
	return res, nil
}

func comparisonOutcome(err error) string {
	switch {
	case errors.Is(err, compare.ErrIndexOutOfRange):
		return "out_of_range"
	case errors.Is(err, similarity.ErrShapeMismatch), errors.Is(err, similarity.ErrImageTooSmall):
		return "shape_mismatch"
	case errors.Is(err, similarity.ErrLoad):
		return "load_error"
	default:
		return "error"
	}
}

// Frame loads one grayscale frame of a ready session.
func (s *Service) Frame(ctx context.Context, id string, kind Kind, index int) (*image.Gray, error) {
	fake, real, err := s.Sequences(ctx, id)
	if err != nil {
		return nil, err
	}

	seq := fake
	if kind == KindReal {
		seq = real
	}
	if index < 1 || index > len(seq) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", compare.ErrIndexOutOfRange, index, len(seq))
	}
	return similarity.LoadGray(seq[index-1])
}

// VideoPath returns the stored upload for one side of a session.
func (s *Service) VideoPath(ctx context.Context, id string, kind Kind) (string, error) {
	videos, err := s.repo.ListVideos(ctx, id)
	if err != nil {
		return "", err
	}
	for _, v := range videos {
		if v.Kind == kind {
			return v.Path, nil
		}
	}
	return "", ErrNotFound
}

func (s *Service) refreshActive(ctx context.Context) {
	if n, err := s.repo.CountSessions(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(n))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
