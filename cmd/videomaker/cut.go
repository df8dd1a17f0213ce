package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phuonglh2812/videomaker/internal/config"
)

func cutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cut <input>",
		Short: "Slice a raw video into random library segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd, args[0])
		},
	}

	cmd.Flags().Float64("min", config.DefaultSegmentMinSecs, "Minimum segment length in seconds")
	cmd.Flags().Float64("max", config.DefaultSegmentMaxSecs, "Maximum segment length in seconds")
	return cmd
}

func runCut(cmd *cobra.Command, input string) error {
	minSecs, _ := cmd.Flags().GetFloat64("min")
	maxSecs, _ := cmd.Flags().GetFloat64("max")

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cuts, err := a.preparer.ProcessRaw(context.Background(), absIn, minSecs, maxSecs)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %d segments in %s\n", len(cuts), a.layout.CutDir())
	return nil
}
