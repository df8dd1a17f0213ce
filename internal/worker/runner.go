// Package worker executes persisted tasks: a polling runner that renders
// one job at a time, and a cron janitor for retention sweeps.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phuonglh2812/videomaker/internal/config"
	"github.com/phuonglh2812/videomaker/internal/library"
	"github.com/phuonglh2812/videomaker/internal/render"
	"github.com/phuonglh2812/videomaker/internal/store"
	"github.com/phuonglh2812/videomaker/internal/subtitles"
)

// Renderer runs one assembled render job. Satisfied by render.Orchestrator.
type Renderer interface {
	Render(ctx context.Context, job render.Job, progress render.ProgressFunc) (string, error)
}

// LibraryPreparer slices raw footage into pool segments. Satisfied by
// render.Preparer.
type LibraryPreparer interface {
	ProcessRaw(ctx context.Context, input string, minSecs, maxSecs float64) ([]string, error)
}

// Runner polls for pending tasks and executes them one at a time.
type Runner struct {
	repo     store.Repository
	renderer Renderer
	preparer LibraryPreparer
	layout   *library.Layout
	logger   *slog.Logger

	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	activeTask   atomic.Value // string
}

func NewRunner(repo store.Repository, renderer Renderer, preparer LibraryPreparer, layout *library.Layout, logger *slog.Logger) *Runner {
	r := &Runner{
		repo:         repo,
		renderer:     renderer,
		preparer:     preparer,
		layout:       layout,
		logger:       logger,
		pollInterval: 2 * time.Second,
	}
	r.activeTask.Store("")
	return r
}

// Start blocks, polling for pending tasks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("task runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("task runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNext(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("task runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("task runner resumed")
}

func (r *Runner) IsPaused() bool  { return r.paused.Load() }
func (r *Runner) IsRunning() bool { return r.running.Load() }

// ActiveTask returns the ID of the task currently executing, or "".
func (r *Runner) ActiveTask() string {
	return r.activeTask.Load().(string)
}

func (r *Runner) processNext(ctx context.Context) {
	tasks, err := r.repo.ListPendingTasks(ctx)
	if err != nil {
		r.logger.Error("failed to list pending tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	task := tasks[0]
	r.logger.Info("processing task", "task_id", task.ID, "type", task.Type)
	r.activeTask.Store(task.ID)
	defer r.activeTask.Store("")

	if err := r.repo.UpdateTaskStatus(ctx, task.ID, store.TaskStatusRunning, ""); err != nil {
		r.logger.Error("failed to mark task running", "task_id", task.ID, "error", err)
		return
	}

	switch task.Type {
	case store.TaskTypeHookRender:
		r.executeHookRender(ctx, task)
	case store.TaskTypeVideoRender:
		r.executeVideoRender(ctx, task)
	case store.TaskTypeCutLibrary:
		r.executeCutLibrary(ctx, task)
	default:
		r.logger.Warn("unknown task type", "type", task.Type)
		r.repo.UpdateTaskStatus(ctx, task.ID, store.TaskStatusFailed, "unknown task type")
	}
}

func (r *Runner) executeHookRender(ctx context.Context, task *store.Task) {
	var payload store.HookRenderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		r.fail(ctx, task.ID, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	style, err := r.resolveStyle(ctx, payload.Preset, payload.Settings)
	if err != nil {
		r.fail(ctx, task.ID, err.Error())
		return
	}

	r.runRender(ctx, task, render.Job{
		ID:        task.ID,
		HookAudio: payload.HookAudio,
		MainAudio: payload.MainAudio,
		Subtitle:  payload.Subtitle,
		Thumbnail: payload.Thumbnail,
		Output:    r.outputPath(task.ID, payload.OutputName),
		Style:     style,
		Vertical:  payload.Vertical,
	})
}

func (r *Runner) executeVideoRender(ctx context.Context, task *store.Task) {
	var payload store.VideoRenderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		r.fail(ctx, task.ID, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	style, err := r.resolveStyle(ctx, payload.Preset, payload.Settings)
	if err != nil {
		r.fail(ctx, task.ID, err.Error())
		return
	}

	name := payload.OutputName
	if name == "" {
		base := filepath.Base(payload.Audio)
		name = strings.TrimSuffix(base, filepath.Ext(base)) + "_final"
	}

	r.runRender(ctx, task, render.Job{
		ID:        task.ID,
		MainAudio: payload.Audio,
		Subtitle:  payload.Subtitle,
		Overlay1:  payload.Overlay1,
		Overlay2:  payload.Overlay2,
		Output:    r.outputPath(task.ID, name),
		Style:     style,
		Vertical:  payload.Vertical,
	})
}

func (r *Runner) runRender(ctx context.Context, task *store.Task, job render.Job) {
	progress := func(stage render.Stage, pct int, msg string) {
		if err := r.repo.UpdateTaskStage(ctx, task.ID, string(stage), pct, msg); err != nil {
			r.logger.Warn("failed to record task progress", "task_id", task.ID, "error", err)
		}
	}

	out, err := r.renderer.Render(ctx, job, progress)
	if err != nil {
		r.fail(ctx, task.ID, err.Error())
		return
	}

	if err := r.repo.SetTaskOutput(ctx, task.ID, out); err != nil {
		r.logger.Error("failed to record task output", "task_id", task.ID, "error", err)
	}
	r.complete(ctx, task.ID)
}

func (r *Runner) executeCutLibrary(ctx context.Context, task *store.Task) {
	var payload store.CutLibraryPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		r.fail(ctx, task.ID, fmt.Sprintf("invalid payload: %v", err))
		return
	}
	if payload.MinSecs <= 0 {
		payload.MinSecs = config.DefaultSegmentMinSecs
	}
	if payload.MaxSecs <= 0 {
		payload.MaxSecs = config.DefaultSegmentMaxSecs
	}

	cuts, err := r.preparer.ProcessRaw(ctx, payload.Input, payload.MinSecs, payload.MaxSecs)
	if err != nil {
		r.fail(ctx, task.ID, err.Error())
		return
	}

	if err := r.repo.UpdateTaskStage(ctx, task.ID, "DONE", 100, fmt.Sprintf("%d segments created", len(cuts))); err != nil {
		r.logger.Warn("failed to record task progress", "task_id", task.ID, "error", err)
	}
	r.complete(ctx, task.ID)
}

// resolveStyle merges, in precedence order, inline settings over named
// preset over empty style. Orientation defaults are applied later by the
// pipeline.
func (r *Runner) resolveStyle(ctx context.Context, presetName string, settings json.RawMessage) (subtitles.StyleConfig, error) {
	var style subtitles.StyleConfig

	if presetName != "" {
		preset, err := r.repo.GetPreset(ctx, presetName)
		if err != nil {
			return style, fmt.Errorf("loading preset %q: %w", presetName, err)
		}
		if preset == nil {
			return style, fmt.Errorf("preset %q not found", presetName)
		}
		if err := json.Unmarshal(preset.Settings, &style); err != nil {
			return style, fmt.Errorf("parsing preset %q: %w", presetName, err)
		}
	}

	if len(settings) > 0 {
		var inline subtitles.StyleConfig
		if err := json.Unmarshal(settings, &inline); err != nil {
			return style, fmt.Errorf("parsing inline settings: %w", err)
		}
		style = style.Merge(inline)
	}
	return style, nil
}

func (r *Runner) outputPath(taskID, name string) string {
	name = library.SanitizeName(name, 128)
	if name == "" {
		name = taskID + ".mp4"
	} else if !strings.HasSuffix(strings.ToLower(name), ".mp4") {
		name += ".mp4"
	}
	return filepath.Join(r.layout.FinalDir(), name)
}

func (r *Runner) fail(ctx context.Context, taskID, msg string) {
	r.logger.Error("task failed", "task_id", taskID, "error", msg)
	if err := r.repo.UpdateTaskStatus(ctx, taskID, store.TaskStatusFailed, msg); err != nil {
		r.logger.Error("failed to mark task failed", "task_id", taskID, "error", err)
	}
}

func (r *Runner) complete(ctx context.Context, taskID string) {
	r.logger.Info("task completed", "task_id", taskID)
	if err := r.repo.UpdateTaskStatus(ctx, taskID, store.TaskStatusCompleted, ""); err != nil {
		r.logger.Error("failed to mark task completed", "task_id", taskID, "error", err)
	}
}
