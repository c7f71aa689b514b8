package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Janitor periodically deletes sessions older than the configured TTL.
type Janitor struct {
	service  *Service
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	running  atomic.Bool
	paused   atomic.Bool
}

func NewJanitor(service *Service, ttl, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		service:  service,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled. A TTL of zero disables cleanup.
func (j *Janitor) Start(ctx context.Context) {
	if j.ttl <= 0 || j.interval <= 0 {
		j.logger.Info("session janitor disabled")
		return
	}
	if j.running.Swap(true) {
		return
	}

	j.logger.Info("session janitor started", "ttl", j.ttl, "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session janitor stopping")
			j.running.Store(false)
			return
		case <-ticker.C:
			if !j.paused.Load() {
				j.Sweep(ctx)
			}
		}
	}
}

// Sweep runs one cleanup pass and returns the number of sessions removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	removed, err := j.service.PurgeBefore(ctx, j.now().Add(-j.ttl))
	if err != nil {
		j.logger.Error("session sweep failed", "error", err)
		return 0
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed", "count", removed)
	}
	return removed
}

func (j *Janitor) Pause() {
	j.paused.Store(true)
	j.logger.Info("session janitor paused")
}

func (j *Janitor) Resume() {
	j.paused.Store(false)
	j.logger.Info("session janitor resumed")
}

func (j *Janitor) IsPaused() bool {
	return j.paused.Load()
}

func (j *Janitor) IsRunning() bool {
	return j.running.Load()
}
