package render

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/samber/lo"
)

// maxReplenishCycles bounds how many times an exhausted pool is reset
// before selection gives up. Without the bound a pool of all-unprobeable
// clips would loop forever.
const maxReplenishCycles = 3

// DurationSource answers clip duration lookups, 0 meaning unusable.
type DurationSource interface {
	Duration(ctx context.Context, path string) float64
}

// Segment is one piece of assembled background footage: a source clip used
// whole, or a temp file cut down to fit the remaining need.
type Segment struct {
	Path     string
	Duration float64
	Temp     bool
}

// SelectOptions parameterize one selection run.
type SelectOptions struct {
	// TempDir receives cut segments; names are reserved through Temps.
	Temps *TempFileSet
	// Cut configures how segments are materialized. Vertical renders
	// re-encode every segment to the portrait frame, so StreamCopy is off
	// and Width/Height are set.
	Cut CutOptions
}

// Selector fills a duration target from a clip pool by randomized greedy
// selection. It holds no pool state: candidates and the exclusion set are
// owned by the caller, so concurrent jobs never share selection state.
type Selector struct {
	durations DurationSource
	cutter    *Cutter
	logger    *slog.Logger
	rng       *rand.Rand
}

func NewSelector(durations DurationSource, cutter *Cutter, logger *slog.Logger, rng *rand.Rand) *Selector {
	return &Selector{durations: durations, cutter: cutter, logger: logger, rng: rng}
}

// Select picks clips from pool until their summed duration reaches target,
// cutting the final overshooting clip down to exactly fit. Clips in exclude
// are skipped; every consumed or unprobeable clip is added to exclude, so a
// job passing the same set across calls never reuses a clip while fresh ones
// remain. When the pool runs dry before the target is met it is replenished
// (consumed clips become eligible again), a bounded number of times.
//
// Returns ErrInsufficientMedia when the pool has no usable clip at all.
func (s *Selector) Select(ctx context.Context, target float64, pool []string, exclude map[string]bool, opts SelectOptions) ([]Segment, error) {
	if target <= 0 {
		return nil, nil
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("selecting %.2fs: %w", target, ErrInsufficientMedia)
	}

	// Unprobeable clips stay out of consideration across replenish cycles.
	dead := map[string]bool{}
	// Clips already appended to this result; replenishment re-admits them
	// only when nothing fresh remains.
	appended := map[string]bool{}

	var segments []Segment
	remaining := target

	for cycle := 0; cycle <= maxReplenishCycles; cycle++ {
		candidates := lo.Filter(pool, func(p string, _ int) bool {
			return !exclude[p] && !dead[p]
		})

		for len(candidates) > 0 && remaining > 0 {
			i := s.rng.Intn(len(candidates))
			clip := candidates[i]
			candidates = append(candidates[:i], candidates[i+1:]...)
			exclude[clip] = true

			dur := s.durations.Duration(ctx, clip)
			if dur <= 0 {
				s.logger.Warn("skipping unusable clip", "path", clip)
				dead[clip] = true
				continue
			}

			if dur > remaining {
				cut := opts.Temps.Path("cut", "mp4")
				if err := s.cutter.Cut(ctx, clip, 0, remaining, cut, opts.Cut); err != nil {
					return nil, fmt.Errorf("cutting final segment: %w", err)
				}
				segments = append(segments, Segment{Path: cut, Duration: remaining, Temp: true})
				return segments, nil
			}

			path := clip
			temp := false
			if !opts.Cut.StreamCopy {
				// Re-encode mode normalizes every segment, whole clips
				// included, so the later concatenation sees uniform frames.
				reenc := opts.Temps.Path("seg", "mp4")
				if err := s.cutter.Cut(ctx, clip, 0, 0, reenc, opts.Cut); err != nil {
					return nil, fmt.Errorf("re-encoding segment: %w", err)
				}
				path = reenc
				temp = true
			}
			segments = append(segments, Segment{Path: path, Duration: dur, Temp: temp})
			appended[clip] = true
			remaining -= dur
		}

		if remaining <= 0 {
			return segments, nil
		}

		// Pool exhausted with duration still owed: make consumed clips
		// eligible again. Dead clips stay dead.
		usable := lo.CountBy(pool, func(p string) bool { return !dead[p] })
		if usable == 0 {
			return nil, fmt.Errorf("selecting %.2fs: %w", target, ErrInsufficientMedia)
		}
		s.logger.Info("clip pool exhausted, replenishing", "cycle", cycle+1, "remaining", remaining)
		fresh := 0
		for _, p := range pool {
			if !dead[p] && !appended[p] {
				delete(exclude, p)
				fresh++
			}
		}
		if fresh == 0 {
			for _, p := range pool {
				if !dead[p] {
					delete(exclude, p)
				}
			}
		}
	}

	return nil, fmt.Errorf("selecting %.2fs after %d pool cycles: %w", target, maxReplenishCycles, ErrInsufficientMedia)
}

// SegmentPaths projects the segment file paths in order.
func SegmentPaths(segments []Segment) []string {
	return lo.Map(segments, func(s Segment, _ int) string { return s.Path })
}
