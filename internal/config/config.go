// Package config provides configuration management for the videomaker service.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 5001
	DefaultLogLevel = "info"
	DefaultDataDir  = ".videomaker"

	// Environment variable names
	EnvPort       = "VIDEOMAKER_PORT"
	EnvLogLevel   = "VIDEOMAKER_LOG_LEVEL"
	EnvDataDir    = "VIDEOMAKER_DATA_DIR"
	EnvLibraryDir = "VIDEOMAKER_LIBRARY_DIR"
	EnvFFmpeg     = "VIDEOMAKER_FFMPEG"
	EnvFFprobe    = "VIDEOMAKER_FFPROBE"
	EnvHeadless   = "VIDEOMAKER_HEADLESS"
	EnvProfile    = "VIDEOMAKER_ENCODER_PROFILE"

	// Database filename
	DBFilename = "videomaker.db"

	// Render defaults
	DefaultEncodeTimeout  = 30 * time.Minute
	DefaultProbeTimeout   = 30 * time.Second
	DefaultTaskTTL        = 30 * 24 * time.Hour
	DefaultRetryDelay     = 5 * time.Second
	DefaultSegmentMinSecs = 4.0
	DefaultSegmentMaxSecs = 7.0
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LibraryDir() string
	FFmpegPath() string
	FFprobePath() string
	EncoderProfilePath() string
	Headless() bool
	EncodeTimeout() time.Duration
	ProbeTimeout() time.Duration
	TaskTTL() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	libraryDir string
	ffmpeg     string
	ffprobe    string
	profile    string
	headless   bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
		ffmpeg:   "ffmpeg",
		ffprobe:  "ffprobe",
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	// The library defaults to living inside the data dir so a bare
	// install works without any environment at all.
	cfg.libraryDir = filepath.Join(cfg.dataDir, "library")
	if ld := os.Getenv(EnvLibraryDir); ld != "" {
		cfg.libraryDir = ld
	}

	if f := os.Getenv(EnvFFmpeg); f != "" {
		cfg.ffmpeg = f
	}
	if f := os.Getenv(EnvFFprobe); f != "" {
		cfg.ffprobe = f
	}
	cfg.profile = os.Getenv(EnvProfile)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LibraryDir returns the root of the clip library directory tree
func (c *EnvConfig) LibraryDir() string {
	return c.libraryDir
}

// FFmpegPath returns the ffmpeg binary path or name
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

// FFprobePath returns the ffprobe binary path or name
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

// EncoderProfilePath returns an optional YAML encoder profile override file
func (c *EnvConfig) EncoderProfilePath() string {
	return c.profile
}

// Headless reports whether the system tray should be disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// EncodeTimeout returns the per-invocation encoder timeout
func (c *EnvConfig) EncodeTimeout() time.Duration {
	return DefaultEncodeTimeout
}

// ProbeTimeout returns the per-invocation probe timeout
func (c *EnvConfig) ProbeTimeout() time.Duration {
	return DefaultProbeTimeout
}

// TaskTTL returns how long finished tasks are retained before eviction
func (c *EnvConfig) TaskTTL() time.Duration {
	return DefaultTaskTTL
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
