package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phuonglh2812/videomaker/internal/library"
	"github.com/phuonglh2812/videomaker/internal/render"
	"github.com/phuonglh2812/videomaker/internal/store"
	"github.com/phuonglh2812/videomaker/internal/subtitles"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one video synchronously and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd)
		},
	}

	cmd.Flags().String("hook", "", "Hook audio file (required)")
	cmd.Flags().String("audio", "", "Main audio file (required)")
	cmd.Flags().String("subtitle", "", "Subtitle file, SRT or ASS (required)")
	cmd.Flags().String("thumbnail", "", "Thumbnail image for the hook section (required)")
	cmd.Flags().String("out", "", "Output file name (default: generated)")
	cmd.Flags().String("preset", "", "Named subtitle style preset")
	cmd.Flags().Bool("vertical", false, "Render 9:16 instead of 16:9")

	for _, name := range []string{"hook", "audio", "subtitle", "thumbnail"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runRender(cmd *cobra.Command) error {
	hook, _ := cmd.Flags().GetString("hook")
	audio, _ := cmd.Flags().GetString("audio")
	subtitle, _ := cmd.Flags().GetString("subtitle")
	thumbnail, _ := cmd.Flags().GetString("thumbnail")
	out, _ := cmd.Flags().GetString("out")
	preset, _ := cmd.Flags().GetString("preset")
	vertical, _ := cmd.Flags().GetBool("vertical")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	var style subtitles.StyleConfig
	if preset != "" {
		p, err := a.repo.GetPreset(ctx, preset)
		if err != nil {
			return fmt.Errorf("loading preset %q: %w", preset, err)
		}
		if p == nil {
			return fmt.Errorf("preset %q not found", preset)
		}
		if err := json.Unmarshal(p.Settings, &style); err != nil {
			return fmt.Errorf("parsing preset %q: %w", preset, err)
		}
	}

	id := store.NewID()
	name := library.SanitizeName(out, 128)
	if name == "" {
		name = id + ".mp4"
	} else if !strings.HasSuffix(strings.ToLower(name), ".mp4") {
		name += ".mp4"
	}

	job := render.Job{
		ID:        id,
		HookAudio: hook,
		MainAudio: audio,
		Subtitle:  subtitle,
		Thumbnail: thumbnail,
		Output:    filepath.Join(a.layout.FinalDir(), name),
		Style:     style,
		Vertical:  vertical,
	}

	progress := func(stage render.Stage, pct int, msg string) {
		fmt.Fprintf(cmd.OutOrStdout(), "[%3d%%] %s %s\n", pct, stage, msg)
	}

	output, err := a.renderer.Render(ctx, job, progress)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
