package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/framecmp/framecmp/internal/api"
	"github.com/framecmp/framecmp/internal/config"
	"github.com/framecmp/framecmp/internal/db"
	"github.com/framecmp/framecmp/internal/logging"
	"github.com/framecmp/framecmp/internal/media"
	"github.com/framecmp/framecmp/internal/pipeline"
	"github.com/framecmp/framecmp/internal/session"
	"github.com/framecmp/framecmp/internal/ui"
)

type serveOptions struct {
	Port     int
	Headless bool
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the comparison web UI on 127.0.0.1",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), serveOpts)
	},
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().IntVarP(&serveOpts.Port, "port", "p", 0, "HTTP port (overrides "+config.EnvPort+")")
		c.Flags().BoolVar(&serveOpts.Headless, "headless", false, "Do not show the system tray icon")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, opts serveOptions) error {
	startTime := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.Port != 0 {
		if opts.Port < 1 || opts.Port > 65535 {
			return fmt.Errorf("invalid port %d", opts.Port)
		}
		cfg.PortValue = opts.Port
	}
	if opts.Headless {
		cfg.HeadlessValue = true
	}

	if err := os.MkdirAll(cfg.SessionsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting framecmp", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	instanceID, err := ensureInstanceID(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure instance ID: %w", err)
	}

	ffmpeg := newFFmpeg(cfg, logging.WithComponent(logger, "ffmpeg"))
	doctor := pipeline.NewCachedDoctor(ffmpeg, logger)

	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	caps, err := doctor.Refresh(probeCtx)
	probeCancel()
	if !caps.CanExtract() {
		logger.Warn("ffmpeg toolchain unavailable, uploads will fail until it is installed", "error", err)
	} else {
		logger.Info("ffmpeg toolchain detected",
			"ffmpeg", caps.FFmpeg.Path,
			"ffprobe", caps.FFprobe.Path,
		)
	}

	svc := session.NewService(repo, ffmpeg, cfg.SessionsDir(), logging.WithComponent(logger, "session"))
	janitor := session.NewJanitor(svc, cfg.SessionTTL(), cfg.JanitorInterval(), logging.WithComponent(logger, "janitor"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go janitor.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Sessions:       svc,
		Media:          media.NewServer(logger),
		Janitor:        janitor,
		Doctor:         doctor,
		Logger:         logging.WithComponent(logger, "http"),
		StartTime:      startTime,
		InstanceID:     instanceID,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.Start()
	}()

	fmt.Fprintf(os.Stderr, "\n  framecmp %s listening on http://%s\n\n", config.Version, apiServer.Addr())

	quitCh := make(chan struct{})

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Sessions: svc,
			Cleanup:  janitor,
			Logger:   logging.WithComponent(logger, "tray"),
			Address:  apiServer.Addr(),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-quitCh:
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureInstanceID(ctx context.Context, repo session.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, "instance_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := repo.SetConfig(ctx, "instance_id", id); err != nil {
		return "", err
	}
	return id, nil
}
