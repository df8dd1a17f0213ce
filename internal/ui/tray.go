// Package ui provides the desktop system tray surface: render state,
// queue depth, pause/resume and quit.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/phuonglh2812/videomaker/internal/store"
	"github.com/phuonglh2812/videomaker/internal/worker"
)

type Tray struct {
	repo   store.Repository
	runner *worker.Runner
	logger *slog.Logger

	statusItem *systray.MenuItem
	queueItem  *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Repository store.Repository
	Runner     *worker.Runner
	Logger     *slog.Logger
	OnQuit     func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		repo:   cfg.Repository,
		runner: cfg.Runner,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("VideoMaker")
	systray.SetTooltip("VideoMaker render service")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current render status")
	t.statusItem.Disable()

	t.queueItem = systray.AddMenuItem("Queue: 0", "Pending render tasks")
	t.queueItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause task processing")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit VideoMaker")

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-ticker.C:
				t.refresh()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if pending, err := t.repo.ListPendingTasks(ctx); err == nil {
		t.queueItem.SetTitle(fmt.Sprintf("Queue: %d", len(pending)))
	}

	if t.runner == nil || t.runner.IsPaused() {
		return
	}
	if t.runner.ActiveTask() != "" {
		t.statusItem.SetTitle("Status: Rendering")
	} else {
		t.statusItem.SetTitle("Status: Idle")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
