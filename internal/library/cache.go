package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/phuonglh2812/videomaker/internal/store"
)

// DurationProber probes a media file's duration in seconds, 0 on failure.
type DurationProber interface {
	Duration(ctx context.Context, path string) float64
}

// Cache answers duration lookups from the database, falling back to a
// probe when the entry is missing or the file's mtime changed.
type Cache struct {
	repo   store.Repository
	prober DurationProber
	logger *slog.Logger
}

func NewCache(repo store.Repository, prober DurationProber, logger *slog.Logger) *Cache {
	return &Cache{repo: repo, prober: prober, logger: logger}
}

// Duration returns the clip's duration in seconds. A probe failure yields
// 0 and is not cached, so a transient failure does not poison the entry.
func (c *Cache) Duration(ctx context.Context, path string) float64 {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	mtime := info.ModTime().UTC().Truncate(time.Second)

	cached, err := c.repo.GetClipInfo(ctx, path)
	if err != nil {
		c.logger.Warn("clip cache lookup failed", "path", path, "error", err)
	} else if cached != nil && cached.Mtime.Equal(mtime) {
		return cached.Duration
	}

	dur := c.prober.Duration(ctx, path)
	if dur <= 0 {
		return 0
	}

	entry := &store.ClipInfo{
		Path:      path,
		Duration:  dur,
		Mtime:     mtime,
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.repo.UpsertClipInfo(ctx, entry); err != nil {
		c.logger.Warn("clip cache update failed", "path", path, "error", err)
	}
	return dur
}

// EvictMissing drops cache entries whose files no longer exist and returns
// how many were removed.
func (c *Cache) EvictMissing(ctx context.Context) (int, error) {
	infos, err := c.repo.ListClipInfos(ctx)
	if err != nil {
		return 0, err
	}

	missing := lo.Filter(infos, func(info *store.ClipInfo, _ int) bool {
		_, err := os.Stat(info.Path)
		return os.IsNotExist(err)
	})
	for _, info := range missing {
		if err := c.repo.DeleteClipInfo(ctx, info.Path); err != nil {
			return 0, err
		}
	}
	if len(missing) > 0 {
		c.logger.Info("evicted missing clips from cache", "count", len(missing))
	}
	return len(missing), nil
}
