package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phuonglh2812/videomaker/internal/library"
	"github.com/phuonglh2812/videomaker/internal/store"
)

// tempMaxAge is how long an orphaned temp file may linger before the sweep
// removes it. Live jobs finish well inside this window.
const tempMaxAge = 24 * time.Hour

// Janitor runs scheduled maintenance: terminal-task TTL eviction, orphaned
// temp-file sweeps and clip-cache eviction for deleted files.
type Janitor struct {
	repo    store.Repository
	cache   *library.Cache
	layout  *library.Layout
	taskTTL time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
	now     func() time.Time
}

func NewJanitor(repo store.Repository, cache *library.Cache, layout *library.Layout, taskTTL time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		repo:    repo,
		cache:   cache,
		layout:  layout,
		taskTTL: taskTTL,
		logger:  logger,
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Start schedules the maintenance jobs and runs one sweep immediately.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc("@hourly", func() { j.SweepTemp() }); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("@daily", func() { j.EvictTasks(ctx) }); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("@daily", func() { j.EvictClipCache(ctx) }); err != nil {
		return err
	}

	j.cron.Start()

	go func() {
		j.EvictTasks(ctx)
		j.SweepTemp()
		j.EvictClipCache(ctx)
	}()
	return nil
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// EvictTasks removes terminal tasks older than the TTL.
func (j *Janitor) EvictTasks(ctx context.Context) {
	cutoff := j.now().Add(-j.taskTTL)
	n, err := j.repo.DeleteTasksBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("task eviction failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("evicted old tasks", "count", n, "cutoff", cutoff)
	}
}

// SweepTemp deletes temp files older than tempMaxAge. Returns how many
// files were removed.
func (j *Janitor) SweepTemp() int {
	entries, err := os.ReadDir(j.layout.TempDir())
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Error("temp sweep failed", "error", err)
		}
		return 0
	}

	removed := 0
	cutoff := j.now().Add(-tempMaxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.layout.TempDir(), e.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn("could not remove stale temp file", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("swept stale temp files", "count", removed)
	}
	return removed
}

// EvictClipCache drops cache entries for clips that no longer exist.
func (j *Janitor) EvictClipCache(ctx context.Context) {
	if _, err := j.cache.EvictMissing(ctx); err != nil {
		j.logger.Error("clip cache eviction failed", "error", err)
	}
}
