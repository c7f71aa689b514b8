package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/framecmp/framecmp/internal/media"
	"github.com/framecmp/framecmp/internal/pipeline"
	"github.com/framecmp/framecmp/internal/session"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// JanitorState is the part of the session janitor the status endpoint reads.
type JanitorState interface {
	IsPaused() bool
	IsRunning() bool
}

type ServerConfig struct {
	Port           int
	Version        string
	Sessions       session.SessionService
	Media          media.VideoServer
	Janitor        JanitorState
	Doctor         *pipeline.CachedDoctor
	Logger         *slog.Logger
	StartTime      time.Time
	InstanceID     string
	MaxUploadBytes int64
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler: router,
			// Uploads and extraction can take minutes; only headers are bounded.
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
