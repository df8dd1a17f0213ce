package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
)

// CutOptions control how a trim window is materialized.
type CutOptions struct {
	// StreamCopy repackages without re-encoding. Fast and lossless, but
	// only valid when the result feeds a like-for-like concatenation.
	StreamCopy bool

	// Width/Height force a scale filter during re-encode. Zero means keep
	// the source frame size.
	Width  int
	Height int
}

// Cutter trims media files with a GPU-then-CPU attempt ladder.
type Cutter struct {
	runner  ffmpeg.Runner
	encoder *ffmpeg.Encoder
	logger  *slog.Logger
}

func NewCutter(runner ffmpeg.Runner, encoder *ffmpeg.Encoder, logger *slog.Logger) *Cutter {
	return &Cutter{runner: runner, encoder: encoder, logger: logger}
}

// Cut writes the [start, start+duration) window of input to output.
// duration <= 0 means "to the end of the input". The expected output file
// must exist afterwards or the cut fails.
func (c *Cutter) Cut(ctx context.Context, input string, start, duration float64, output string, opts CutOptions) error {
	trim := trimArgs(start, duration)

	if opts.StreamCopy {
		args := append(trim, "-i", input, "-c", "copy", output)
		if err := c.runner.Encode(ctx, args); err != nil {
			return err
		}
		return requireOutput(output)
	}

	ladder := c.encoder.Ladder(ctx)
	var lastErr error
	for _, set := range ladder {
		args := append([]string{}, trim...)
		args = append(args, "-i", input)
		if opts.Width > 0 && opts.Height > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height))
		}
		args = append(args, set.Video...)
		args = append(args, ffmpeg.AudioArgs()...)
		args = append(args, output)

		err := c.runner.Encode(ctx, args)
		if err == nil {
			return requireOutput(output)
		}
		lastErr = err
		if set.Hardware {
			c.logger.Warn("hardware cut failed, falling back", "encoder", set.Name, "error", err)
			c.encoder.Invalidate()
			continue
		}
		break
	}
	return lastErr
}

// Standardize re-encodes input to the target frame size with letterbox
// padding and a fixed 30 fps cadence, used to prepare raw library footage.
func (c *Cutter) Standardize(ctx context.Context, input, output string, width, height int) error {
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=30",
		width, height, width, height)

	ladder := c.encoder.Ladder(ctx)
	var lastErr error
	for _, set := range ladder {
		args := []string{"-i", input, "-vf", vf}
		args = append(args, set.Video...)
		args = append(args, ffmpeg.AudioArgs()...)
		args = append(args, output)

		err := c.runner.Encode(ctx, args)
		if err == nil {
			return requireOutput(output)
		}
		lastErr = err
		if set.Hardware {
			c.logger.Warn("hardware standardize failed, falling back", "encoder", set.Name, "error", err)
			c.encoder.Invalidate()
			continue
		}
		break
	}
	return lastErr
}

func trimArgs(start, duration float64) []string {
	var args []string
	if start > 0 {
		args = append(args, "-ss", formatSeconds(start))
	}
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func requireOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ffmpeg.EncodeError{ExitCode: -1, StderrTail: fmt.Sprintf("expected output missing: %s", path)}
	}
	if info.Size() == 0 {
		return &ffmpeg.EncodeError{ExitCode: -1, StderrTail: fmt.Sprintf("expected output empty: %s", path)}
	}
	return nil
}
