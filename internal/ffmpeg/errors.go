package ffmpeg

import (
	"fmt"
	"strings"
)

// EncodeError reports a failed encoder invocation: a non-zero exit, a
// timeout, or a missing expected output. StderrTail carries the last part
// of the encoder's diagnostic stream for the caller's error message.
type EncodeError struct {
	Args       []string
	ExitCode   int
	StderrTail string
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited %d", e.ExitCode)
	if tail := strings.TrimSpace(e.StderrTail); tail != "" {
		msg += ": " + lastLine(tail)
	}
	return msg
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
