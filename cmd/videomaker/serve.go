package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phuonglh2812/videomaker/internal/api"
	"github.com/phuonglh2812/videomaker/internal/store"
	"github.com/phuonglh2812/videomaker/internal/ui"
	"github.com/phuonglh2812/videomaker/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the render service: HTTP API, task worker and system tray",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	startTime := time.Now()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("starting videomaker", "version", Version,
		"data_dir", a.cfg.DataDir(), "library_dir", a.cfg.LibraryDir())

	authToken, err := ensureAuthToken(a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Printf("  VideoMaker v%s\n", Version)
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", a.cfg.Port())
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := worker.NewRunner(a.repo, a.renderer, a.preparer, a.layout, a.logger)
	go runner.Start(ctx)

	janitor := worker.NewJanitor(a.repo, a.cache, a.layout, a.cfg.TaskTTL(), a.logger)
	if err := janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       a.cfg.Port(),
		Repository: a.repo,
		Runner:     runner,
		Layout:     a.layout,
		Logger:     a.logger,
		StartTime:  startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			a.logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if a.cfg.Headless() {
		a.logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Repository: a.repo,
			Runner:     runner,
			Logger:     a.logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	a.logger.Info("initiating graceful shutdown")
	cancel()
	janitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
