package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phuonglh2812/videomaker/internal/store"
	"github.com/phuonglh2812/videomaker/internal/subtitles"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/hook/process", processHookHandler(cfg))
			r.Post("/hook/batch", batchHookHandler(cfg))
			r.Get("/hook/status/{taskID}", taskStatusHandler(cfg))
			r.Get("/hook/presets", listPresetsHandler(cfg))
			r.Post("/hook/presets", savePresetHandler(cfg))
			r.Delete("/hook/presets/{name}", deletePresetHandler(cfg))
			r.Get("/tasks", listTasksHandler(cfg))
			r.Post("/videos/make", makeVideoHandler(cfg))
			r.Post("/videos/cut", cutVideoHandler(cfg))
			r.Get("/files/final/{name}", finalFileHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: "0.1.0",
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		pending, _ := cfg.Repository.ListPendingTasks(ctx)
		recent, _ := cfg.Repository.ListTasks(ctx, 10)

		state := "idle"
		lastError := ""
		var activeTask *TaskResponse

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		if cfg.Runner != nil {
			if id := cfg.Runner.ActiveTask(); id != "" {
				if task, err := cfg.Repository.GetTask(ctx, id); err == nil && task != nil {
					state = "rendering"
					resp := TaskToResponse(task)
					activeTask = &resp
				}
			}
		}

		for _, t := range recent {
			if t.Status == store.TaskStatusFailed {
				lastError = t.Error
				break
			}
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:        state,
			LastError:    lastError,
			TasksPending: len(pending),
			ActiveTask:   activeTask,
		})
	}
}

func processHookHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HookRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if msg := validateHookRequest(req); msg != "" {
			WriteError(w, http.StatusBadRequest, msg, "BAD_REQUEST")
			return
		}

		task, err := createRenderTask(r, cfg, req)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create task", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, TaskCreatedResponse{TaskID: task.ID, Status: task.Status})
	}
}

func batchHookHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Requests) == 0 {
			WriteError(w, http.StatusBadRequest, "requests must not be empty", "BAD_REQUEST")
			return
		}

		// Validate the whole batch before queueing any of it.
		for _, item := range req.Requests {
			if msg := validateHookRequest(item); msg != "" {
				WriteError(w, http.StatusBadRequest, msg, "BAD_REQUEST")
				return
			}
		}

		ids := make([]string, 0, len(req.Requests))
		for _, item := range req.Requests {
			task, err := createRenderTask(r, cfg, item)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "failed to create task", "INTERNAL_ERROR")
				return
			}
			ids = append(ids, task.ID)
		}

		WriteJSON(w, http.StatusAccepted, BatchCreatedResponse{TaskIDs: ids})
	}
}

func validateHookRequest(req HookRenderRequest) string {
	required := map[string]string{
		"hook_audio": req.HookAudio,
		"main_audio": req.MainAudio,
		"subtitle":   req.Subtitle,
		"thumbnail":  req.Thumbnail,
	}
	for field, path := range required {
		if path == "" {
			return field + " is required"
		}
		if _, err := os.Stat(path); err != nil {
			return field + " not found: " + path
		}
	}
	if len(req.Settings) > 0 {
		var style subtitles.StyleConfig
		if err := json.Unmarshal(req.Settings, &style); err != nil {
			return "invalid settings: " + err.Error()
		}
	}
	return ""
}

func createRenderTask(r *http.Request, cfg ServerConfig, req HookRenderRequest) (*store.Task, error) {
	payload, err := json.Marshal(store.HookRenderPayload{
		HookAudio:  req.HookAudio,
		MainAudio:  req.MainAudio,
		Subtitle:   req.Subtitle,
		Thumbnail:  req.Thumbnail,
		OutputName: req.OutputName,
		Preset:     req.Preset,
		Settings:   req.Settings,
		Vertical:   req.Vertical,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := &store.Task{
		ID:        store.NewID(),
		Type:      store.TaskTypeHookRender,
		Status:    store.TaskStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := cfg.Repository.CreateTask(r.Context(), task); err != nil {
		return nil, err
	}
	return task, nil
}

func makeVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VideoRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if msg := validateVideoRequest(req); msg != "" {
			WriteError(w, http.StatusBadRequest, msg, "BAD_REQUEST")
			return
		}

		payload, err := json.Marshal(store.VideoRenderPayload{
			Audio:      req.Audio,
			Subtitle:   req.Subtitle,
			Overlay1:   req.Overlay1,
			Overlay2:   req.Overlay2,
			OutputName: req.OutputName,
			Preset:     req.Preset,
			Settings:   req.Settings,
			Vertical:   req.Vertical,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create task", "INTERNAL_ERROR")
			return
		}

		now := time.Now().UTC()
		task := &store.Task{
			ID:        store.NewID(),
			Type:      store.TaskTypeVideoRender,
			Status:    store.TaskStatusPending,
			Payload:   payload,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := cfg.Repository.CreateTask(r.Context(), task); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create task", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, TaskCreatedResponse{TaskID: task.ID, Status: task.Status})
	}
}

func validateVideoRequest(req VideoRenderRequest) string {
	required := map[string]string{
		"audio":    req.Audio,
		"subtitle": req.Subtitle,
	}
	for field, path := range required {
		if path == "" {
			return field + " is required"
		}
		if _, err := os.Stat(path); err != nil {
			return field + " not found: " + path
		}
	}
	if len(req.Settings) > 0 {
		var style subtitles.StyleConfig
		if err := json.Unmarshal(req.Settings, &style); err != nil {
			return "invalid settings: " + err.Error()
		}
	}
	return ""
}

func taskStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "taskID")
		task, err := cfg.Repository.GetTask(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if task == nil {
			WriteError(w, http.StatusNotFound, "task not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, TaskToResponse(task))
	}
}

func listTasksHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := cfg.Repository.ListTasks(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list tasks", "INTERNAL_ERROR")
			return
		}

		resp := TasksResponse{Tasks: make([]TaskResponse, len(tasks))}
		for i, t := range tasks {
			resp.Tasks[i] = TaskToResponse(t)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listPresetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := cfg.Repository.ListPresetNames(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list presets", "INTERNAL_ERROR")
			return
		}
		if names == nil {
			names = []string{}
		}
		WriteJSON(w, http.StatusOK, PresetNamesResponse{Presets: names})
	}
}

func savePresetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SavePresetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}
		var style subtitles.StyleConfig
		if len(req.Settings) == 0 || json.Unmarshal(req.Settings, &style) != nil {
			WriteError(w, http.StatusBadRequest, "settings must be a valid style object", "BAD_REQUEST")
			return
		}

		if err := cfg.Repository.SavePreset(r.Context(), req.Name, req.Settings); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to save preset", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
	}
}

func deletePresetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		deleted, err := cfg.Repository.DeletePreset(r.Context(), name)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to delete preset", "INTERNAL_ERROR")
			return
		}
		if !deleted {
			WriteError(w, http.StatusNotFound, "preset not found", "NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func cutVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Input == "" {
			WriteError(w, http.StatusBadRequest, "input is required", "BAD_REQUEST")
			return
		}
		if _, err := os.Stat(req.Input); err != nil {
			WriteError(w, http.StatusBadRequest, "input not found: "+req.Input, "BAD_REQUEST")
			return
		}
		if req.MinSecs < 0 || req.MaxSecs < 0 || (req.MaxSecs > 0 && req.MinSecs > req.MaxSecs) {
			WriteError(w, http.StatusBadRequest, "invalid segment bounds", "BAD_REQUEST")
			return
		}

		payload, err := json.Marshal(store.CutLibraryPayload{
			Input:   req.Input,
			MinSecs: req.MinSecs,
			MaxSecs: req.MaxSecs,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create task", "INTERNAL_ERROR")
			return
		}

		now := time.Now().UTC()
		task := &store.Task{
			ID:        store.NewID(),
			Type:      store.TaskTypeCutLibrary,
			Status:    store.TaskStatusPending,
			Payload:   payload,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := cfg.Repository.CreateTask(r.Context(), task); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create task", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, TaskCreatedResponse{TaskID: task.ID, Status: task.Status})
	}
}
