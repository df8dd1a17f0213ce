package render

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
	"github.com/phuonglh2812/videomaker/internal/library"
)

// Preparer turns raw footage into pool-ready background clips: standardize
// to the landscape frame, then slice into short randomized segments.
type Preparer struct {
	cutter *Cutter
	prober *ffmpeg.Prober
	layout *library.Layout
	logger *slog.Logger
	rng    *rand.Rand
}

func NewPreparer(cutter *Cutter, prober *ffmpeg.Prober, layout *library.Layout, logger *slog.Logger, rng *rand.Rand) *Preparer {
	return &Preparer{cutter: cutter, prober: prober, layout: layout, logger: logger, rng: rng}
}

// ProcessRaw standardizes input and cuts it into segments of random length
// in [minSecs, maxSecs], written to the cut directory. Returns the created
// segment paths; fails if no segment could be produced.
func (p *Preparer) ProcessRaw(ctx context.Context, input string, minSecs, maxSecs float64) ([]string, error) {
	if minSecs <= 0 || maxSecs < minSecs {
		return nil, fmt.Errorf("invalid segment bounds [%.1f, %.1f]", minSecs, maxSecs)
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("raw video not found: %s", input)
	}

	cutDir := p.layout.CutDir()
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	width, height := library.Landscape.Dimensions()

	std := filepath.Join(cutDir, "std_"+filepath.Base(input))
	if err := p.cutter.Standardize(ctx, input, std, width, height); err != nil {
		return nil, fmt.Errorf("standardizing raw video: %w", err)
	}
	defer os.Remove(std)

	total := p.prober.Duration(ctx, std)
	if total <= 0 {
		return nil, fmt.Errorf("standardized video %s has no duration", std)
	}

	var cuts []string
	current := 0.0
	for current < total {
		segment := minSecs + p.rng.Float64()*(maxSecs-minSecs)
		if current+segment > total {
			segment = total - current
		}

		out := filepath.Join(cutDir, fmt.Sprintf("cut_%04d_%s.mp4", len(cuts), stem))
		if err := p.cutter.Cut(ctx, std, current, segment, out, CutOptions{}); err != nil {
			p.logger.Error("segment cut failed", "input", input, "start", current, "error", err)
		} else {
			cuts = append(cuts, out)
		}
		current += segment
	}

	if len(cuts) == 0 {
		return nil, fmt.Errorf("no segments produced from %s", input)
	}
	p.logger.Info("raw video prepared", "input", input, "segments", len(cuts))
	return cuts, nil
}
