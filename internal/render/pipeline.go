// Package render implements the video assembly pipeline: duration-driven
// background selection, segment cutting and concatenation, thumbnail-fade
// compositing, subtitle burn-in and the orchestration that sequences them
// for one job with bounded retry and temp-file cleanup.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
	"github.com/phuonglh2812/videomaker/internal/library"
	"github.com/phuonglh2812/videomaker/internal/subtitles"
)

// Stage identifies the pipeline step a job is currently in.
type Stage string

const (
	StageNormalizingAudio     Stage = "NORMALIZING_AUDIO"
	StageProbingDurations     Stage = "PROBING_DURATIONS"
	StageSelectingBackgrounds Stage = "SELECTING_BACKGROUNDS"
	StageCompositingHook      Stage = "COMPOSITING_HOOK"
	StageBurningSubtitles     Stage = "BURNING_SUBTITLES"
	StageConcatenating        Stage = "CONCATENATING"
	StageDone                 Stage = "DONE"
	StageFailed               Stage = "FAILED"
)

// Percent maps a stage to an approximate completion percentage for task
// status reporting.
func (s Stage) Percent() int {
	switch s {
	case StageNormalizingAudio:
		return 10
	case StageProbingDurations:
		return 20
	case StageSelectingBackgrounds:
		return 35
	case StageCompositingHook:
		return 55
	case StageBurningSubtitles:
		return 75
	case StageConcatenating:
		return 90
	case StageDone:
		return 100
	default:
		return 0
	}
}

// ProgressFunc receives stage transitions during a render.
type ProgressFunc func(stage Stage, percent int, message string)

// Job is the unit of work for one final output. With HookAudio set the
// pipeline builds a two-part video: a thumbnail-composited hook followed by
// the subtitled main. With HookAudio empty it takes the single-track path:
// one background fill for MainAudio with subtitles and up to two overlay
// images burned in.
type Job struct {
	ID        string
	HookAudio string
	MainAudio string
	Subtitle  string
	Thumbnail string
	Overlay1  string
	Overlay2  string
	Output    string
	Style     subtitles.StyleConfig
	Vertical  bool
}

const (
	pipelineRetries   = 1
	defaultRetryDelay = 5 * time.Second
)

// Orchestrator sequences the pipeline components end to end for one job.
// It owns no cross-job state beyond the shared encoder capability cache;
// each Render call builds its own temp set and clip exclusion set.
type Orchestrator struct {
	prober     *ffmpeg.Prober
	durations  DurationSource
	normalizer *Normalizer
	selector   *Selector
	cutter     *Cutter
	concat     *Concatenator
	compositor *Compositor
	burner     *Burner
	layout     *library.Layout
	logger     *slog.Logger

	retryDelay time.Duration
	sleep      func(time.Duration)
}

func NewOrchestrator(runner ffmpeg.Runner, encoder *ffmpeg.Encoder, prober *ffmpeg.Prober, durations DurationSource, layout *library.Layout, logger *slog.Logger) *Orchestrator {
	cutter := NewCutter(runner, encoder, logger)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Orchestrator{
		prober:     prober,
		durations:  durations,
		normalizer: NewNormalizer(runner, logger),
		selector:   NewSelector(durations, cutter, logger, rng),
		cutter:     cutter,
		concat:     NewConcatenator(runner, encoder, logger),
		compositor: NewCompositor(runner, encoder, prober, logger),
		burner:     NewBurner(runner, encoder, logger),
		layout:     layout,
		logger:     logger,
		retryDelay: defaultRetryDelay,
		sleep:      time.Sleep,
	}
}

// Render runs the whole pipeline for job, retrying the entire sequence once
// on failure. On any terminal outcome every temp artifact is cleaned up,
// and on failure no partial file is left at the job's output path.
func (o *Orchestrator) Render(ctx context.Context, job Job, progress ProgressFunc) (string, error) {
	log := o.logger.With("job_id", job.ID)
	temps := NewTempFileSet(o.layout.TempDir(), job.ID, log)
	defer temps.Cleanup()

	report := func(stage Stage, msg string) {
		log.Info("pipeline stage", "stage", string(stage))
		if progress != nil {
			progress(stage, stage.Percent(), msg)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= pipelineRetries; attempt++ {
		if attempt > 0 {
			log.Info("retrying pipeline", "attempt", attempt+1, "delay", o.retryDelay)
			o.sleep(o.retryDelay)
		}

		out, err := o.runAttempt(ctx, job, temps, report)
		if err == nil {
			report(StageDone, "render complete")
			return out, nil
		}

		lastErr = err
		log.Error("pipeline attempt failed", "attempt", attempt+1, "error", err)
		if errors.Is(err, ErrInsufficientMedia) {
			// More media will not appear between attempts.
			break
		}
	}

	report(StageFailed, lastErr.Error())
	return "", lastErr
}

func (o *Orchestrator) runAttempt(ctx context.Context, job Job, temps *TempFileSet, report func(Stage, string)) (string, error) {
	if job.HookAudio == "" {
		return o.runSingleAttempt(ctx, job, temps, report)
	}

	orientation := orientationOf(job.Vertical)
	width, height := orientation.Dimensions()

	report(StageNormalizingAudio, "normalizing audio tracks")
	hookWav := temps.Path("normalized_hook", "wav")
	if err := o.normalizer.Normalize(ctx, job.HookAudio, hookWav); err != nil {
		return "", fmt.Errorf("normalizing hook audio: %w", err)
	}
	mainWav := temps.Path("normalized_main", "wav")
	if err := o.normalizer.Normalize(ctx, job.MainAudio, mainWav); err != nil {
		return "", fmt.Errorf("normalizing main audio: %w", err)
	}

	report(StageProbingDurations, "probing audio durations")
	hookDur := o.prober.Duration(ctx, hookWav)
	if hookDur <= 0 {
		return "", fmt.Errorf("hook audio %s has no duration", job.HookAudio)
	}
	mainDur := o.prober.Duration(ctx, mainWav)
	if mainDur <= 0 {
		return "", fmt.Errorf("main audio %s has no duration", job.MainAudio)
	}

	report(StageSelectingBackgrounds, "assembling background footage")
	pool, err := library.ListClips(o.layout.PoolDir(orientation))
	if err != nil {
		return "", err
	}

	cutOpts := CutOptions{StreamCopy: !job.Vertical}
	if job.Vertical {
		cutOpts.Width, cutOpts.Height = width, height
	}
	exclude := map[string]bool{}
	selOpts := SelectOptions{Temps: temps, Cut: cutOpts}

	hookSegs, err := o.selector.Select(ctx, hookDur, pool, exclude, selOpts)
	if err != nil {
		return "", fmt.Errorf("selecting hook background: %w", err)
	}
	mainSegs, err := o.selector.Select(ctx, mainDur, pool, exclude, selOpts)
	if err != nil {
		return "", fmt.Errorf("selecting main background: %w", err)
	}

	hookBG := temps.Path("hook_background", "mp4")
	if err := o.concat.Concatenate(ctx, SegmentPaths(hookSegs), hookBG, StreamCopy, temps); err != nil {
		return "", fmt.Errorf("joining hook background: %w", err)
	}
	mainBG := temps.Path("main_background", "mp4")
	if err := o.concat.Concatenate(ctx, SegmentPaths(mainSegs), mainBG, StreamCopy, temps); err != nil {
		return "", fmt.Errorf("joining main background: %w", err)
	}

	report(StageCompositingHook, "compositing thumbnail onto hook")
	hookPart := temps.Path("hook_with_thumbnail", "mp4")
	if err := o.compositor.Composite(ctx, hookBG, job.Thumbnail, hookWav, hookPart); err != nil {
		return "", fmt.Errorf("compositing hook: %w", err)
	}

	report(StageBurningSubtitles, "burning subtitles onto main")
	style := subtitles.DefaultStyle(job.Vertical).Merge(job.Style)
	mainPart := temps.Path("main_with_subtitle", "mp4")
	spec := BurnSpec{
		Background: mainBG,
		Audio:      mainWav,
		Subtitle:   job.Subtitle,
		Style:      style,
		Width:      width,
		Height:     height,
		Output:     mainPart,
	}
	if err := o.burner.Burn(ctx, spec, temps); err != nil {
		return "", err
	}

	report(StageConcatenating, "concatenating final output")
	finalTmp := temps.Path("final", "mp4")
	// Ordering is fixed: hook first, main second.
	if err := o.concat.Concatenate(ctx, []string{hookPart, mainPart}, finalTmp, ReEncode, temps); err != nil {
		return "", fmt.Errorf("final concatenation: %w", err)
	}

	if err := publish(finalTmp, job.Output); err != nil {
		return "", err
	}
	return job.Output, nil
}

// runSingleAttempt builds a single-track video: background footage filling
// one audio track, optional centered overlays, and burned subtitles.
func (o *Orchestrator) runSingleAttempt(ctx context.Context, job Job, temps *TempFileSet, report func(Stage, string)) (string, error) {
	orientation := orientationOf(job.Vertical)
	width, height := orientation.Dimensions()

	report(StageNormalizingAudio, "normalizing audio track")
	wav := temps.Path("normalized_audio", "wav")
	if err := o.normalizer.Normalize(ctx, job.MainAudio, wav); err != nil {
		return "", fmt.Errorf("normalizing audio: %w", err)
	}

	report(StageProbingDurations, "probing audio duration")
	dur := o.prober.Duration(ctx, wav)
	if dur <= 0 {
		return "", fmt.Errorf("audio %s has no duration", job.MainAudio)
	}

	report(StageSelectingBackgrounds, "assembling background footage")
	pool, err := library.ListClips(o.layout.PoolDir(orientation))
	if err != nil {
		return "", err
	}

	cutOpts := CutOptions{StreamCopy: !job.Vertical}
	if job.Vertical {
		cutOpts.Width, cutOpts.Height = width, height
	}
	segs, err := o.selector.Select(ctx, dur, pool, map[string]bool{}, SelectOptions{Temps: temps, Cut: cutOpts})
	if err != nil {
		return "", fmt.Errorf("selecting background: %w", err)
	}

	background := temps.Path("background", "mp4")
	if err := o.concat.Concatenate(ctx, SegmentPaths(segs), background, StreamCopy, temps); err != nil {
		return "", fmt.Errorf("joining background: %w", err)
	}

	report(StageBurningSubtitles, "burning subtitles and overlays")
	style := subtitles.DefaultStyle(job.Vertical).Merge(job.Style)
	finalTmp := temps.Path("final", "mp4")
	spec := BurnSpec{
		Background: background,
		Audio:      wav,
		Subtitle:   job.Subtitle,
		Overlays:   o.presentOverlays(job),
		Style:      style,
		Width:      width,
		Height:     height,
		Output:     finalTmp,
	}
	if err := o.burner.Burn(ctx, spec, temps); err != nil {
		return "", err
	}

	if err := publish(finalTmp, job.Output); err != nil {
		return "", err
	}
	return job.Output, nil
}

// presentOverlays returns the overlay paths that exist on disk. A missing
// overlay degrades to a warning rather than failing the job.
func (o *Orchestrator) presentOverlays(job Job) []string {
	var overlays []string
	for _, overlay := range []string{job.Overlay1, job.Overlay2} {
		if overlay == "" {
			continue
		}
		if _, err := os.Stat(overlay); err != nil {
			o.logger.Warn("overlay not found, skipping", "path", overlay)
			continue
		}
		overlays = append(overlays, overlay)
	}
	return overlays
}

func orientationOf(vertical bool) library.Orientation {
	if vertical {
		return library.Portrait
	}
	return library.Landscape
}

// publish moves the finished render into its declared output location. The
// output path only ever sees a complete file.
func publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; copy then remove.
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("publishing output: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("publishing output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("publishing output: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("publishing output: %w", err)
	}
	return os.Remove(src)
}
