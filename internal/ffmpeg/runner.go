// Package ffmpeg wraps the external ffmpeg/ffprobe binaries: subprocess
// execution with bounded stderr capture, media probing, and encoder
// capability detection with a CPU fallback argument ladder.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

// Runner executes ffmpeg and ffprobe commands. The interface exists so the
// render pipeline can be tested against a fake without spawning processes.
type Runner interface {
	// Encode runs ffmpeg with the given arguments. "-y -hide_banner" is
	// prepended. A non-zero exit or context error returns *EncodeError.
	Encode(ctx context.Context, args []string) error

	// Probe runs ffprobe with the given arguments and returns trimmed stdout.
	Probe(ctx context.Context, args []string) (string, error)

	// ListEncoders returns the output of ffmpeg's encoder listing, used for
	// hardware capability detection.
	ListEncoders(ctx context.Context) (string, error)
}

// CommandRunner is the production Runner backed by os/exec. Every
// invocation carries a deadline so a wedged subprocess cannot stall the
// pipeline; a zero timeout disables the bound.
type CommandRunner struct {
	ffmpeg        string
	ffprobe       string
	encodeTimeout time.Duration
	probeTimeout  time.Duration
	logger        *slog.Logger
}

func NewCommandRunner(ffmpegPath, ffprobePath string, encodeTimeout, probeTimeout time.Duration, logger *slog.Logger) *CommandRunner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &CommandRunner{
		ffmpeg:        ffmpegPath,
		ffprobe:       ffprobePath,
		encodeTimeout: encodeTimeout,
		probeTimeout:  probeTimeout,
		logger:        logger,
	}
}

func (r *CommandRunner) Encode(ctx context.Context, args []string) error {
	full := append([]string{"-y", "-hide_banner"}, args...)

	r.logger.Debug("executing ffmpeg", "args", strings.Join(full, " "))

	ctx, cancel := withTimeout(ctx, r.encodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffmpeg, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	encErr := &EncodeError{
		Args:       full,
		ExitCode:   exitCode(err),
		StderrTail: tail(stderr.Bytes()),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// A timeout imposed by the invocation layer surfaces as an
		// EncodeError like any other encoder failure.
		encErr.StderrTail = ctxErr.Error()
	}
	return encErr
}

func (r *CommandRunner) Probe(ctx context.Context, args []string) (string, error) {
	ctx, cancel := withTimeout(ctx, r.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffprobe, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &EncodeError{
			Args:       args,
			ExitCode:   exitCode(err),
			StderrTail: tail(stderr.Bytes()),
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *CommandRunner) ListEncoders(ctx context.Context) (string, error) {
	ctx, cancel := withTimeout(ctx, r.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffmpeg, "-hide_banner", "-encoders")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func tail(b []byte) string {
	if len(b) > maxStderrBytes {
		b = b[len(b)-maxStderrBytes:]
	}
	return string(b)
}
