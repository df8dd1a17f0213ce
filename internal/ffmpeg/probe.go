package ffmpeg

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Downstream composition always needs concrete dimensions, so probing
// failures degrade to the landscape default instead of propagating.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Prober retrieves duration and frame dimensions of media files.
type Prober struct {
	runner Runner
	logger *slog.Logger
}

func NewProber(runner Runner, logger *slog.Logger) *Prober {
	return &Prober{runner: runner, logger: logger}
}

// Duration returns the container duration in seconds, or 0 on any failure:
// missing file, empty file, probe error, or unparsable output. Callers must
// treat 0 as "unusable clip", never as a real duration.
func (p *Prober) Duration(ctx context.Context, path string) float64 {
	abs, err := filepath.Abs(path)
	if err != nil {
		p.logger.Error("cannot resolve media path", "path", path, "error", err)
		return 0
	}
	path = abs

	if _, err := os.Stat(path); err != nil {
		// The file may have been renamed mid-job (e.g. by an uploader
		// appending a suffix); try siblings sharing the stem before giving up.
		if sibling := findSibling(path); sibling != "" {
			p.logger.Warn("media file moved, using sibling", "path", path, "sibling", sibling)
			path = sibling
		} else {
			p.logger.Error("media file not found", "path", path)
			return 0
		}
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		p.logger.Warn("media file empty or unreadable", "path", path)
		return 0
	}

	out, err := p.runner.Probe(ctx, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		p.logger.Error("ffprobe duration failed", "path", path, "error", err)
		return 0
	}
	if out == "" {
		p.logger.Warn("no duration in probe output", "path", path)
		return 0
	}

	dur, err := strconv.ParseFloat(out, 64)
	if err != nil {
		p.logger.Error("cannot parse probed duration", "path", path, "output", out)
		return 0
	}
	return dur
}

// Dimensions returns the first video stream's width and height, falling
// back to 1920x1080 when the probe fails.
func (p *Prober) Dimensions(ctx context.Context, path string) (int, int) {
	out, err := p.runner.Probe(ctx, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	})
	if err != nil {
		p.logger.Error("ffprobe dimensions failed", "path", path, "error", err)
		return DefaultWidth, DefaultHeight
	}

	parts := strings.SplitN(out, "x", 2)
	if len(parts) != 2 {
		return DefaultWidth, DefaultHeight
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return w, h
}

// findSibling globs for files sharing the missing path's stem and extension.
func findSibling(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), stem+"*"+ext))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}
