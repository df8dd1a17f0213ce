// Package library manages the on-disk media library: the directory layout,
// clip discovery per orientation pool, filename sanitization, and a
// database-backed duration cache so repeated renders do not re-probe an
// unchanged library.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Orientation selects which clip pool a render draws from.
type Orientation string

const (
	Landscape Orientation = "16_9"
	Portrait  Orientation = "9_16"
)

// PoolDir returns the library subdirectory holding this orientation's clips.
func (o Orientation) PoolDir() string {
	switch o {
	case Portrait:
		return "Input_9_16"
	default:
		return "Input_16_9"
	}
}

// Dimensions returns the target frame size for this orientation.
func (o Orientation) Dimensions() (int, int) {
	if o == Portrait {
		return 1080, 1920
	}
	return 1920, 1080
}

// Layout is the library's directory structure rooted at BaseDir.
type Layout struct {
	BaseDir string
}

func NewLayout(baseDir string) *Layout {
	return &Layout{BaseDir: baseDir}
}

func (l *Layout) PoolDir(o Orientation) string { return filepath.Join(l.BaseDir, o.PoolDir()) }
func (l *Layout) RawDir() string               { return filepath.Join(l.BaseDir, "raw") }
func (l *Layout) CutDir() string               { return filepath.Join(l.BaseDir, "cut") }
func (l *Layout) UsedDir() string              { return filepath.Join(l.BaseDir, "used") }
func (l *Layout) TempDir() string              { return filepath.Join(l.BaseDir, "temp") }
func (l *Layout) FinalDir() string             { return filepath.Join(l.BaseDir, "final") }

// Ensure creates every library directory that does not yet exist.
func (l *Layout) Ensure() error {
	dirs := []string{
		l.PoolDir(Landscape),
		l.PoolDir(Portrait),
		l.RawDir(),
		l.CutDir(),
		l.UsedDir(),
		l.TempDir(),
		l.FinalDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create library directory %s: %w", dir, err)
		}
	}
	return nil
}

// ListClips returns the absolute paths of all mp4 files directly inside
// dir, sorted by name. A missing directory yields an empty list.
func ListClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read clip directory %s: %w", dir, err)
	}

	var clips []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		clips = append(clips, filepath.Join(dir, e.Name()))
	}
	sort.Strings(clips)
	return clips, nil
}
