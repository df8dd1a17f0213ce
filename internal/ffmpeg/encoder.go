package ffmpeg

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// HardwareEncoder is the identifier searched for in the encoder listing.
const HardwareEncoder = "h264_nvenc"

// ArgSet is one codec argument bundle to append to an encoder invocation.
// Components iterate a ladder of these, trying each until one succeeds.
type ArgSet struct {
	Name     string
	Hardware bool
	Video    []string
}

// AudioArgs is the audio codec bundle shared by every muxing invocation.
func AudioArgs() []string {
	return []string{"-c:a", "aac", "-b:a", "192k"}
}

// Encoder detects hardware capability and hands out argument ladders.
// The capability flag is cached per session and invalidated when a
// component reports a hardware-path failure, so the next ladder re-probes.
type Encoder struct {
	runner  Runner
	logger  *slog.Logger
	profile Profile

	mu     sync.Mutex
	hasGPU *bool
}

func NewEncoder(runner Runner, logger *slog.Logger, profile Profile) *Encoder {
	return &Encoder{runner: runner, logger: logger, profile: profile}
}

// HasGPUEncoder reports whether the hardware encoder is available, probing
// the encoder listing on first use.
func (e *Encoder) HasGPUEncoder(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasGPU != nil {
		return *e.hasGPU
	}

	out, err := e.runner.ListEncoders(ctx)
	available := err == nil && strings.Contains(out, HardwareEncoder)
	e.hasGPU = &available

	e.logger.Info("encoder capability probed", "gpu", available)
	return available
}

// Invalidate clears the cached capability so the next ladder re-checks.
// Components call this after a hardware-path failure.
func (e *Encoder) Invalidate() {
	e.mu.Lock()
	e.hasGPU = nil
	e.mu.Unlock()
}

// Ladder returns the argument sets to try in order for the streaming-style
// encodes (cuts, composites, final concatenation). The CPU set is always
// last; GPU and CPU bundles target the same resolution and bitrate ceiling.
func (e *Encoder) Ladder(ctx context.Context) []ArgSet {
	cpu := ArgSet{
		Name: "libx264",
		Video: []string{
			"-c:v", "libx264",
			"-preset", e.profile.CPUPreset,
			"-crf", e.profile.CRF,
			"-b:v", e.profile.Bitrate,
			"-maxrate", e.profile.MaxRate,
			"-bufsize", e.profile.BufSize,
			"-profile:v", "high",
			"-r", e.profile.FrameRate,
			"-g", e.profile.GOP,
			"-movflags", "+faststart",
		},
	}

	if !e.HasGPUEncoder(ctx) {
		return []ArgSet{cpu}
	}

	gpu := ArgSet{
		Name:     HardwareEncoder,
		Hardware: true,
		Video: []string{
			"-c:v", HardwareEncoder,
			"-preset", e.profile.GPUPreset,
			"-tune", "hq",
			"-rc", "cbr",
			"-b:v", e.profile.Bitrate,
			"-minrate", e.profile.Bitrate,
			"-maxrate", e.profile.Bitrate,
			"-bufsize", e.profile.Bitrate,
			"-profile:v", "high",
			"-r", e.profile.FrameRate,
			"-g", e.profile.GOP,
		},
	}
	return []ArgSet{gpu, cpu}
}

// QualityLadder returns the argument sets for the subtitle burn, which uses
// a variable-rate high-quality encode rather than the streaming bundle.
func (e *Encoder) QualityLadder(ctx context.Context) []ArgSet {
	cpu := ArgSet{
		Name: "libx264",
		Video: []string{
			"-c:v", "libx264",
			"-preset", e.profile.CPUPreset,
			"-profile:v", "high",
			"-level", "4.2",
			"-crf", e.profile.BurnCRF,
			"-maxrate", "20M",
			"-bufsize", "40M",
			"-pix_fmt", "yuv420p",
		},
	}

	if !e.HasGPUEncoder(ctx) {
		return []ArgSet{cpu}
	}

	gpu := ArgSet{
		Name:     HardwareEncoder,
		Hardware: true,
		Video: []string{
			"-c:v", HardwareEncoder,
			"-preset", "slow",
			"-profile:v", "high",
			"-level", "4.2",
			"-rc", "vbr_hq",
			"-cq", e.profile.BurnCRF,
			"-b:v", "0",
			"-maxrate", "20M",
			"-bufsize", "40M",
			"-pix_fmt", "yuv420p",
		},
	}
	return []ArgSet{gpu, cpu}
}

// StripHardwareArgs removes hardware-specific options from an argument list
// and substitutes the CPU encoder. Filter-graph failures are sometimes
// driver-specific rather than codec-selection-specific, so the compositor
// retries with the full command minus the hardware surface.
func StripHardwareArgs(args []string) []string {
	dropWithValue := map[string]bool{
		"-tune":    true,
		"-rc":      true,
		"-cq":      true,
		"-minrate": true,
		"-maxrate": true,
		"-bufsize": true,
		"-hwaccel": true,
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if dropWithValue[arg] {
			i++ // skip the flag's value too
			continue
		}
		if arg == "-c:v" && i+1 < len(args) && strings.Contains(args[i+1], "nvenc") {
			i++
			continue
		}
		if arg == "-preset" && i+1 < len(args) && strings.HasPrefix(args[i+1], "p") && len(args[i+1]) == 2 {
			// nvenc p1-p7 presets mean nothing to libx264
			i++
			continue
		}
		out = append(out, arg)
	}

	// Output path must stay last; insert the CPU encoder just before it.
	if len(out) == 0 {
		return []string{"-c:v", "libx264", "-preset", "medium"}
	}
	last := out[len(out)-1]
	out = append(out[:len(out)-1], "-c:v", "libx264", "-preset", "medium", last)
	return out
}
