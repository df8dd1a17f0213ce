package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
)

// ConcatMode selects how segments are joined.
type ConcatMode int

const (
	// StreamCopy repackages segments without re-encoding. All inputs must
	// share codec, resolution and frame rate.
	StreamCopy ConcatMode = iota
	// ReEncode decodes and re-encodes through one encoder pass, required
	// when the inputs come from different compositing stages.
	ReEncode
)

// Concatenator joins ordered segment lists through a generated manifest.
type Concatenator struct {
	runner  ffmpeg.Runner
	encoder *ffmpeg.Encoder
	logger  *slog.Logger
}

func NewConcatenator(runner ffmpeg.Runner, encoder *ffmpeg.Encoder, logger *slog.Logger) *Concatenator {
	return &Concatenator{runner: runner, encoder: encoder, logger: logger}
}

// Concatenate joins paths in order into output. The manifest is written
// under temps' namespace and removed when the call returns, success or not.
func (c *Concatenator) Concatenate(ctx context.Context, paths []string, output string, mode ConcatMode, temps *TempFileSet) error {
	if len(paths) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}

	manifest := temps.Path("concat_list", "txt")
	if err := writeManifest(manifest, paths); err != nil {
		return err
	}
	defer os.Remove(manifest)

	base := []string{"-f", "concat", "-safe", "0", "-i", manifest}

	if mode == StreamCopy {
		args := append(append([]string{}, base...), "-c", "copy", output)
		if err := c.runner.Encode(ctx, args); err != nil {
			return err
		}
		return requireOutput(output)
	}

	var lastErr error
	for _, set := range c.encoder.Ladder(ctx) {
		args := append([]string{}, base...)
		args = append(args, set.Video...)
		args = append(args, ffmpeg.AudioArgs()...)
		args = append(args, "-ar", "48000", "-ac", "2", output)

		err := c.runner.Encode(ctx, args)
		if err == nil {
			return requireOutput(output)
		}
		lastErr = err
		if set.Hardware {
			c.logger.Warn("hardware concat failed, falling back", "encoder", set.Name, "error", err)
			c.encoder.Invalidate()
			continue
		}
		break
	}
	return lastErr
}

// writeManifest emits the concat demuxer's file list: one absolute path per
// line, single-quoted. The demuxer has no quote escaping, so paths carrying
// a single quote are rejected up front.
func writeManifest(manifest string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving segment path %s: %w", p, err)
		}
		abs = filepath.ToSlash(abs)
		if strings.Contains(abs, "'") {
			return fmt.Errorf("segment path contains a single quote: %s", abs)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	if err := os.WriteFile(manifest, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat manifest: %w", err)
	}
	return nil
}
