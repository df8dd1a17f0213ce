package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	cleanupMaxRetries   = 5
	cleanupInitialDelay = 500 * time.Millisecond
)

// TempFileSet tracks the intermediate artifacts of one render job. Every
// filename it hands out embeds the job ID so concurrent jobs sharing a temp
// directory cannot collide. Cleanup is best-effort: the encoder process may
// still hold a handle on Windows, so deletion retries with backoff and
// degrades to a warning.
type TempFileSet struct {
	dir    string
	jobID  string
	logger *slog.Logger
	files  []string
	seq    int

	sleep func(time.Duration)
}

func NewTempFileSet(dir, jobID string, logger *slog.Logger) *TempFileSet {
	return &TempFileSet{dir: dir, jobID: jobID, logger: logger, sleep: time.Sleep}
}

// Path reserves a new namespaced temp filename and registers it for cleanup.
func (s *TempFileSet) Path(base, ext string) string {
	s.seq++
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%03d.%s", s.jobID, base, s.seq, ext))
	s.files = append(s.files, path)
	return path
}

// Add registers an externally created file for cleanup.
func (s *TempFileSet) Add(path string) {
	s.files = append(s.files, path)
}

// Cleanup deletes every registered file with per-file bounded retries.
// Returns how many files could not be removed; failures are logged, never
// fatal.
func (s *TempFileSet) Cleanup() int {
	failed := 0
	for _, path := range s.files {
		if !s.remove(path) {
			failed++
		}
	}
	s.files = nil
	return failed
}

func (s *TempFileSet) remove(path string) bool {
	delay := cleanupInitialDelay
	for attempt := 0; attempt < cleanupMaxRetries; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return true
		}
		if attempt < cleanupMaxRetries-1 {
			s.logger.Debug("temp file busy, retrying delete", "path", path, "delay", delay)
			s.sleep(delay)
			delay *= 2
			continue
		}
		s.logger.Warn("could not delete temp file", "path", path, "error", err)
	}
	return false
}
