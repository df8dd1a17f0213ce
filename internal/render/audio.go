package render

import (
	"context"
	"log/slog"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
)

// Normalizer rewrites audio tracks to the pipeline's working format:
// 24-bit PCM, 34 kHz, stereo. Every input is normalized before probing so
// hook and main durations are measured on identical footing.
type Normalizer struct {
	runner ffmpeg.Runner
	logger *slog.Logger
}

func NewNormalizer(runner ffmpeg.Runner, logger *slog.Logger) *Normalizer {
	return &Normalizer{runner: runner, logger: logger}
}

func (n *Normalizer) Normalize(ctx context.Context, input, output string) error {
	args := []string{
		"-i", input,
		"-acodec", "pcm_s24le",
		"-ar", "34000",
		"-ac", "2",
		output,
	}
	if err := n.runner.Encode(ctx, args); err != nil {
		return err
	}
	return requireOutput(output)
}
