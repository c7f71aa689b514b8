package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// Cleanup is the janitor control surface the tray drives.
type Cleanup interface {
	Pause()
	Resume()
	IsPaused() bool
}

// SessionCounter reports how many sessions are held on disk.
type SessionCounter interface {
	CountSessions(ctx context.Context) (int, error)
}

type Tray struct {
	sessions SessionCounter
	cleanup  Cleanup
	logger   *slog.Logger
	address  string
	refresh  time.Duration

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Sessions SessionCounter
	Cleanup  Cleanup
	Logger   *slog.Logger
	Address  string
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		sessions: cfg.Sessions,
		cleanup:  cfg.Cleanup,
		logger:   cfg.Logger,
		address:  cfg.Address,
		refresh:  10 * time.Second,
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks on the platform event loop until Quit.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes())
	systray.SetTitle("framecmp")
	systray.SetTooltip("framecmp on http://" + t.address)

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Comparison sessions on disk")
	t.sessionsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem(pauseLabel(false), "Pause or resume expired session cleanup")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit framecmp")

	t.refreshCount(ctx)

	go func() {
		ticker := time.NewTicker(t.refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.refreshCount(ctx)
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func pauseLabel(paused bool) string {
	if paused {
		return "Resume cleanup"
	}
	return "Pause cleanup"
}

func statusLabel(paused bool) string {
	if paused {
		return "Status: Cleanup paused"
	}
	return "Status: Idle"
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cleanup == nil {
		return
	}

	if t.cleanup.IsPaused() {
		t.cleanup.Resume()
	} else {
		t.cleanup.Pause()
	}
	paused := t.cleanup.IsPaused()
	t.pauseItem.SetTitle(pauseLabel(paused))
	t.statusItem.SetTitle(statusLabel(paused))
}

func (t *Tray) refreshCount(ctx context.Context) {
	if t.sessions == nil {
		return
	}
	count, err := t.sessions.CountSessions(ctx)
	if err != nil {
		t.logger.Debug("tray session count failed", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionsItem.SetTitle(fmt.Sprintf("Sessions: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
