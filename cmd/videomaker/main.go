package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/phuonglh2812/videomaker/internal/config"
	"github.com/phuonglh2812/videomaker/internal/db"
	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
	"github.com/phuonglh2812/videomaker/internal/library"
	"github.com/phuonglh2812/videomaker/internal/logging"
	"github.com/phuonglh2812/videomaker/internal/render"
	"github.com/phuonglh2812/videomaker/internal/store"
)

var Version = "0.1.0"

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "videomaker",
		Short:        "Assemble short-form videos from audio, subtitles and a clip library",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.AddCommand(serveCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(cutCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired service graph shared by all subcommands.
type app struct {
	cfg      *config.EnvConfig
	logger   *slog.Logger
	database *db.DB
	repo     store.Repository
	layout   *library.Layout
	encoder  *ffmpeg.Encoder
	prober   *ffmpeg.Prober
	cache    *library.Cache
	renderer *render.Orchestrator
	preparer *render.Preparer
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())

	layout := library.NewLayout(cfg.LibraryDir())
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to create library directories: %w", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := store.NewRepository(database.Conn())

	profile := ffmpeg.DefaultProfile()
	profilePath := cfg.EncoderProfilePath()
	if profilePath == "" {
		profilePath = ffmpeg.FindProfileFile(cfg.DataDir())
	}
	if profilePath != "" {
		profile, err = ffmpeg.LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded encoder profile", "path", profilePath)
	}

	runner := ffmpeg.NewCommandRunner(cfg.FFmpegPath(), cfg.FFprobePath(), cfg.EncodeTimeout(), cfg.ProbeTimeout(), logger)
	encoder := ffmpeg.NewEncoder(runner, logger, profile)
	prober := ffmpeg.NewProber(runner, logger)
	cache := library.NewCache(repo, prober, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		repo:     repo,
		layout:   layout,
		encoder:  encoder,
		prober:   prober,
		cache:    cache,
		renderer: render.NewOrchestrator(runner, encoder, prober, cache, layout, logger),
		preparer: render.NewPreparer(render.NewCutter(runner, encoder, logger), prober, layout, logger, rng),
	}, nil
}

func (a *app) Close() {
	if err := a.database.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}
