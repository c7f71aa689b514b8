// Package config provides configuration management for framecmp.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// Default values
	DefaultPort     = 8797
	DefaultLogLevel = "info"
	DefaultDataDir  = ".framecmp"

	// Database filename
	DBFilename = "framecmp.db"

	// Environment variable names
	EnvPort     = "FRAMECMP_PORT"
	EnvLogLevel = "FRAMECMP_LOG_LEVEL"
	EnvDataDir  = "FRAMECMP_DATA_DIR"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	SessionsDir() string
	FrameFormat() string
	FFmpegPath() string
	FFprobePath() string
	ExtractTimeout() time.Duration
	MaxUploadBytes() int64
	SessionTTL() time.Duration
	JanitorInterval() time.Duration
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	PortValue      int           `env:"FRAMECMP_PORT"`
	LogLevelValue  string        `env:"FRAMECMP_LOG_LEVEL"`
	LogFormatValue string        `env:"FRAMECMP_LOG_FORMAT" envDefault:"json"`
	DataDirValue   string        `env:"FRAMECMP_DATA_DIR"`
	FrameFmt       string        `env:"FRAMECMP_FRAME_FORMAT" envDefault:"jpg"`
	FFmpeg         string        `env:"FRAMECMP_FFMPEG"`
	FFprobe        string        `env:"FRAMECMP_FFPROBE"`
	Extract        time.Duration `env:"FRAMECMP_EXTRACT_TIMEOUT" envDefault:"10m"`
	MaxUploadMB    int64         `env:"FRAMECMP_MAX_UPLOAD_MB" envDefault:"1024"`
	TTL            time.Duration `env:"FRAMECMP_SESSION_TTL" envDefault:"24h"`
	Janitor        time.Duration `env:"FRAMECMP_JANITOR_INTERVAL" envDefault:"1m"`
	HeadlessValue  bool          `env:"FRAMECMP_HEADLESS"`
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if _, ok := os.LookupEnv(EnvPort); !ok {
		cfg.PortValue = DefaultPort
	}
	if cfg.PortValue < 1 || cfg.PortValue > 65535 {
		return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
	}

	if cfg.LogLevelValue == "" {
		cfg.LogLevelValue = DefaultLogLevel
	}
	if cfg.DataDirValue == "" {
		cfg.DataDirValue = defaultDataDir()
	}

	cfg.FrameFmt = strings.TrimPrefix(strings.ToLower(cfg.FrameFmt), ".")
	switch cfg.FrameFmt {
	case "jpg", "png":
	default:
		return nil, fmt.Errorf("invalid FRAMECMP_FRAME_FORMAT %q: must be jpg or png", cfg.FrameFmt)
	}

	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid FRAMECMP_MAX_UPLOAD_MB: must be positive")
	}
	if cfg.Janitor <= 0 {
		return nil, fmt.Errorf("invalid FRAMECMP_JANITOR_INTERVAL: must be positive")
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.PortValue
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.LogLevelValue
}

// LogFormat returns "json" or "console"
func (c *EnvConfig) LogFormat() string {
	return c.LogFormatValue
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.DataDirValue
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.DataDirValue, DBFilename)
}

// SessionsDir holds one working directory per comparison session
func (c *EnvConfig) SessionsDir() string {
	return filepath.Join(c.DataDirValue, "sessions")
}

func (c *EnvConfig) FrameFormat() string {
	return c.FrameFmt
}

func (c *EnvConfig) FFmpegPath() string {
	return c.FFmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.FFprobe
}

func (c *EnvConfig) ExtractTimeout() time.Duration {
	return c.Extract
}

func (c *EnvConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// SessionTTL is the age after which the janitor removes a session; zero
// disables expiry.
func (c *EnvConfig) SessionTTL() time.Duration {
	return c.TTL
}

func (c *EnvConfig) JanitorInterval() time.Duration {
	return c.Janitor
}

func (c *EnvConfig) Headless() bool {
	return c.HeadlessValue
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
