package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
	"github.com/phuonglh2812/videomaker/internal/subtitles"
)

// Burner scales a background clip, burns a styled subtitle track into it
// and muxes the result with an audio track.
type Burner struct {
	runner  ffmpeg.Runner
	encoder *ffmpeg.Encoder
	logger  *slog.Logger
}

func NewBurner(runner ffmpeg.Runner, encoder *ffmpeg.Encoder, logger *slog.Logger) *Burner {
	return &Burner{runner: runner, encoder: encoder, logger: logger}
}

// BurnSpec describes one burn pass: the video and audio inputs, the subtitle
// track to style, optional overlay images centered on the frame, and the
// output frame size.
type BurnSpec struct {
	Background string
	Audio      string
	Subtitle   string
	Overlays   []string
	Style      subtitles.StyleConfig
	Width      int
	Height     int
	Output     string
}

// Burn renders spec.Subtitle (SRT or ASS) over the background at the given
// frame size, composites any overlays at frame center and muxes with audio
// into spec.Output. SRT sources are styled into a script inside the job's
// temp set first.
func (b *Burner) Burn(ctx context.Context, spec BurnSpec, temps *TempFileSet) error {
	assPath, err := subtitles.ConvertFile(spec.Subtitle, temps.Path("styled_subtitle", "ass"),
		spec.Style, spec.Width, spec.Height, 0)
	if err != nil {
		return &SubtitleBurnError{Subtitle: spec.Subtitle, Err: err}
	}

	filter := burnFilter(spec.Width, spec.Height, assPath, len(spec.Overlays))

	var lastErr error
	for _, set := range b.encoder.QualityLadder(ctx) {
		args := []string{
			"-i", spec.Background,
			"-i", spec.Audio,
		}
		for _, overlay := range spec.Overlays {
			args = append(args, "-i", overlay)
		}
		args = append(args,
			"-filter_complex", filter,
			"-map", "[final]",
			"-map", "1:a",
		)
		args = append(args, set.Video...)
		args = append(args, ffmpeg.AudioArgs()...)
		args = append(args, spec.Output)

		err := b.runner.Encode(ctx, args)
		if err == nil {
			if err := requireOutput(spec.Output); err != nil {
				return &SubtitleBurnError{Subtitle: spec.Subtitle, Err: err}
			}
			return nil
		}
		lastErr = err
		if set.Hardware {
			b.logger.Warn("hardware burn failed, falling back", "encoder", set.Name, "error", err)
			b.encoder.Invalidate()
			continue
		}
		break
	}
	return &SubtitleBurnError{Subtitle: spec.Subtitle, Err: lastErr}
}

// burnFilter builds the filter graph: scale the background, chain each
// overlay input centered on the frame, then burn the subtitle script last so
// text stays above the overlays. Overlay inputs start at index 2 (0 is the
// background, 1 the audio).
func burnFilter(width, height int, assPath string, overlays int) string {
	scaled := fmt.Sprintf("[0:v]scale=%d:%d,fps=30,setpts=PTS-STARTPTS", width, height)
	ass := fmt.Sprintf("ass='%s'[final]", escapeFilterPath(assPath))
	if overlays == 0 {
		return scaled + "," + ass
	}

	steps := []string{scaled + "[base]"}
	last := "[base]"
	for i := 0; i < overlays; i++ {
		label := fmt.Sprintf("[ov%d]", i+1)
		steps = append(steps, fmt.Sprintf("%s[%d:v]overlay=(W-w)/2:(H-h)/2%s", last, i+2, label))
		last = label
	}
	steps = append(steps, last+ass)
	return strings.Join(steps, ";")
}

// escapeFilterPath makes a filesystem path safe inside a single-quoted
// filter option: forward slashes and an escaped drive colon.
func escapeFilterPath(path string) string {
	path = filepath.ToSlash(path)
	return strings.ReplaceAll(path, ":", "\\:")
}
