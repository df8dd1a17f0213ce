package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TaskTypeHookRender  = "hook_render"
	TaskTypeVideoRender = "video_render"
	TaskTypeCutLibrary  = "cut_library"

	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Task is one unit of background work: a hook-video render, a single-track
// video render or a library-preparation pass. Payload holds the
// type-specific request JSON.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Stage      string          `json:"stage,omitempty"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OutputPath string          `json:"output_path,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// HookRenderPayload is the request body of a hook_render task. Settings,
// when present, override the preset; both overlay the orientation defaults.
type HookRenderPayload struct {
	HookAudio  string          `json:"hook_audio"`
	MainAudio  string          `json:"main_audio"`
	Subtitle   string          `json:"subtitle"`
	Thumbnail  string          `json:"thumbnail"`
	OutputName string          `json:"output_name,omitempty"`
	Preset     string          `json:"preset,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	Vertical   bool            `json:"vertical"`
}

// VideoRenderPayload is the request body of a video_render task: one audio
// track over background footage with subtitles and up to two overlay images
// centered on the frame.
type VideoRenderPayload struct {
	Audio      string          `json:"audio"`
	Subtitle   string          `json:"subtitle"`
	Overlay1   string          `json:"overlay1,omitempty"`
	Overlay2   string          `json:"overlay2,omitempty"`
	OutputName string          `json:"output_name,omitempty"`
	Preset     string          `json:"preset,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	Vertical   bool            `json:"vertical"`
}

// CutLibraryPayload is the request body of a cut_library task.
type CutLibraryPayload struct {
	Input   string  `json:"input"`
	MinSecs float64 `json:"min_secs,omitempty"`
	MaxSecs float64 `json:"max_secs,omitempty"`
}

// Preset is a named subtitle style configuration stored as JSON.
type Preset struct {
	Name      string          `json:"name"`
	Settings  json.RawMessage `json:"settings"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ClipInfo caches the probed duration of a library clip, keyed by absolute
// path and invalidated when the file's mtime changes.
type ClipInfo struct {
	Path      string    `json:"path"`
	Duration  float64   `json:"duration"`
	Mtime     time.Time `json:"mtime"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}

func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
