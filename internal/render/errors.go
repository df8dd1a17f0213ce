package render

import (
	"errors"
	"fmt"
)

// ErrInsufficientMedia means the clip pool holds zero usable clips for the
// requested selection. Retrying the job cannot help, so the orchestrator
// aborts immediately on it.
var ErrInsufficientMedia = errors.New("no usable clips in pool")

// SubtitleBurnError reports a failed subtitle styling or burn-in step.
type SubtitleBurnError struct {
	Subtitle string
	Err      error
}

func (e *SubtitleBurnError) Error() string {
	return fmt.Sprintf("subtitle burn failed for %s: %v", e.Subtitle, e.Err)
}

func (e *SubtitleBurnError) Unwrap() error { return e.Err }
