package api

import (
	"encoding/json"
	"time"

	"github.com/phuonglh2812/videomaker/internal/store"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string        `json:"state"`
	LastError    string        `json:"last_error,omitempty"`
	TasksPending int           `json:"tasks_pending"`
	ActiveTask   *TaskResponse `json:"active_task,omitempty"`
}

// HookRenderRequest drives one render. All media paths must already exist
// on the host. Settings overlay the named preset when both are given.
type HookRenderRequest struct {
	HookAudio  string          `json:"hook_audio"`
	MainAudio  string          `json:"main_audio"`
	Subtitle   string          `json:"subtitle"`
	Thumbnail  string          `json:"thumbnail"`
	OutputName string          `json:"output_name,omitempty"`
	Preset     string          `json:"preset,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	Vertical   bool            `json:"vertical"`
}

type BatchRenderRequest struct {
	Requests []HookRenderRequest `json:"requests"`
}

// VideoRenderRequest drives a single-track render: one audio track over
// background footage with subtitles burned in. Overlays are optional; a
// provided overlay that is missing at render time is skipped with a warning.
type VideoRenderRequest struct {
	Audio      string          `json:"audio"`
	Subtitle   string          `json:"subtitle"`
	Overlay1   string          `json:"overlay1,omitempty"`
	Overlay2   string          `json:"overlay2,omitempty"`
	OutputName string          `json:"output_name,omitempty"`
	Preset     string          `json:"preset,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	Vertical   bool            `json:"vertical"`
}

type CutRequest struct {
	Input   string  `json:"input"`
	MinSecs float64 `json:"min_secs,omitempty"`
	MaxSecs float64 `json:"max_secs,omitempty"`
}

type TaskCreatedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type BatchCreatedResponse struct {
	TaskIDs []string `json:"task_ids"`
}

type TaskResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Stage      string `json:"stage,omitempty"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type TasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

type SavePresetRequest struct {
	Name     string          `json:"name"`
	Settings json.RawMessage `json:"settings"`
}

type PresetNamesResponse struct {
	Presets []string `json:"presets"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func TaskToResponse(t *store.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		Type:       t.Type,
		Status:     t.Status,
		Stage:      t.Stage,
		Progress:   t.Progress,
		Message:    t.Message,
		Error:      t.Error,
		OutputPath: t.OutputPath,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}
