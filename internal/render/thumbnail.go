package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
)

const thumbnailFadeSecs = 0.5

// Compositor overlays a thumbnail onto the start of a background clip with
// fade transitions, muxing the result against a separate audio track.
type Compositor struct {
	runner  ffmpeg.Runner
	encoder *ffmpeg.Encoder
	prober  *ffmpeg.Prober
	logger  *slog.Logger
}

func NewCompositor(runner ffmpeg.Runner, encoder *ffmpeg.Encoder, prober *ffmpeg.Prober, logger *slog.Logger) *Compositor {
	return &Compositor{runner: runner, encoder: encoder, prober: prober, logger: logger}
}

// Composite overlays thumbnail at (0,0) for the clip's whole duration with
// a 0.5 s fade in and out, taking video from the filter graph and audio
// verbatim from the audio input. A failed hardware attempt is retried once
// with the hardware arguments stripped: filter-graph failures can be
// driver-specific, not just codec-selection-specific.
func (c *Compositor) Composite(ctx context.Context, background, thumbnail, audio, output string) error {
	dur := c.prober.Duration(ctx, background)
	if dur <= 0 {
		return fmt.Errorf("thumbnail composite: background clip %s has no duration", background)
	}

	fadeOutStart := dur - thumbnailFadeSecs
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}
	filter := fmt.Sprintf(
		"[0:v][1:v]overlay=0:0:enable='between(t,0,%s)',fade=t=in:st=0:d=%.1f,fade=t=out:st=%s:d=%.1f[v]",
		formatSeconds(dur), thumbnailFadeSecs, formatSeconds(fadeOutStart), thumbnailFadeSecs)

	set := c.encoder.Ladder(ctx)[0]
	args := []string{
		"-i", background,
		"-i", thumbnail,
		"-i", audio,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "2:a",
	}
	args = append(args, set.Video...)
	args = append(args, ffmpeg.AudioArgs()...)
	args = append(args, output)

	err := c.runner.Encode(ctx, args)
	if err != nil && set.Hardware {
		c.logger.Warn("hardware composite failed, retrying without hardware args", "error", err)
		c.encoder.Invalidate()
		err = c.runner.Encode(ctx, ffmpeg.StripHardwareArgs(args))
	}
	if err != nil {
		return err
	}
	return requireOutput(output)
}
