package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	for _, env := range []string{EnvPort, EnvLogLevel, EnvDataDir, EnvLibraryDir, EnvFFmpeg, EnvFFprobe, EnvHeadless, EnvProfile} {
		os.Unsetenv(env)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.FFmpegPath() != "ffmpeg" || cfg.FFprobePath() != "ffprobe" {
		t.Errorf("tool paths = %q, %q", cfg.FFmpegPath(), cfg.FFprobePath())
	}
	if cfg.Headless() {
		t.Error("Headless() = true, want false by default")
	}
	if cfg.LibraryDir() != filepath.Join(cfg.DataDir(), "library") {
		t.Errorf("LibraryDir() = %q, want under data dir", cfg.LibraryDir())
	}
	if cfg.DBPath() != filepath.Join(cfg.DataDir(), DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv(EnvPort, "8080")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvDataDir, "/var/lib/videomaker")
	t.Setenv(EnvLibraryDir, "/mnt/clips")
	t.Setenv(EnvFFmpeg, "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv(EnvHeadless, "true")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q", cfg.LogLevel())
	}
	if cfg.DataDir() != "/var/lib/videomaker" {
		t.Errorf("DataDir() = %q", cfg.DataDir())
	}
	if cfg.LibraryDir() != "/mnt/clips" {
		t.Errorf("LibraryDir() = %q, env override lost", cfg.LibraryDir())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath() = %q", cfg.FFmpegPath())
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
}

func TestNew_InvalidPort(t *testing.T) {
	cases := []string{"not-a-number", "0", "70000"}
	for _, value := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv(EnvPort, value)
			if _, err := New(); err == nil {
				t.Errorf("New() with port %q succeeded, want error", value)
			}
		})
	}
}

func TestNew_InvalidHeadless(t *testing.T) {
	t.Setenv(EnvHeadless, "maybe")
	if _, err := New(); err == nil {
		t.Error("New() with bad headless flag succeeded, want error")
	}
}
