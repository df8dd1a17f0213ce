package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Repository interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, limit int) ([]*Task, error)
	ListPendingTasks(ctx context.Context) ([]*Task, error)
	UpdateTaskStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateTaskStage(ctx context.Context, id, stage string, progress int, message string) error
	SetTaskOutput(ctx context.Context, id, outputPath string) error
	DeleteTasksBefore(ctx context.Context, cutoff time.Time) (int, error)

	SavePreset(ctx context.Context, name string, settings json.RawMessage) error
	GetPreset(ctx context.Context, name string) (*Preset, error)
	ListPresetNames(ctx context.Context) ([]string, error)
	DeletePreset(ctx context.Context, name string) (bool, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	GetClipInfo(ctx context.Context, path string) (*ClipInfo, error)
	UpsertClipInfo(ctx context.Context, info *ClipInfo) error
	DeleteClipInfo(ctx context.Context, path string) error
	ListClipInfos(ctx context.Context) ([]*ClipInfo, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, t *Task) error {
	payload := string(t.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, type, status, stage, progress, message, error, payload, output_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Type, t.Status, t.Stage, t.Progress, t.Message, t.Error, payload, t.OutputPath,
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, stage, progress, message, error, payload, output_path, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, limit int) ([]*Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, stage, progress, message, error, payload, output_path, created_at, updated_at
		FROM tasks ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *SQLiteRepository) ListPendingTasks(ctx context.Context) ([]*Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, stage, progress, message, error, payload, output_path, created_at, updated_at
		FROM tasks WHERE status = ? ORDER BY created_at ASC
	`, TaskStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *SQLiteRepository) UpdateTaskStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, errorMsg, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateTaskStage(ctx context.Context, id, stage string, progress int, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET stage = ?, progress = ?, message = ?, updated_at = ? WHERE id = ?
	`, stage, progress, message, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) SetTaskOutput(ctx context.Context, id, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET output_path = ?, updated_at = ? WHERE id = ?
	`, outputPath, time.Now().Format(time.RFC3339), id)
	return err
}

// DeleteTasksBefore removes terminal tasks older than the cutoff and
// returns how many rows were evicted.
func (r *SQLiteRepository) DeleteTasksBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?
	`, TaskStatusCompleted, TaskStatusFailed, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) SavePreset(ctx context.Context, name string, settings json.RawMessage) error {
	now := time.Now().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO presets (name, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`, name, string(settings), now, now)
	return err
}

func (r *SQLiteRepository) GetPreset(ctx context.Context, name string) (*Preset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, settings, created_at, updated_at FROM presets WHERE name = ?
	`, name)

	var p Preset
	var settings, createdAt, updatedAt string
	err := row.Scan(&p.Name, &settings, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Settings = json.RawMessage(settings)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListPresetNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SQLiteRepository) DeletePreset(ctx context.Context, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM presets WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) GetClipInfo(ctx context.Context, path string) (*ClipInfo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT path, duration, mtime, updated_at FROM clip_cache WHERE path = ?
	`, path)

	var c ClipInfo
	var mtime, updatedAt string
	err := row.Scan(&c.Path, &c.Duration, &mtime, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Mtime, _ = time.Parse(time.RFC3339Nano, mtime)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteRepository) UpsertClipInfo(ctx context.Context, info *ClipInfo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clip_cache (path, duration, mtime, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET duration = excluded.duration, mtime = excluded.mtime, updated_at = excluded.updated_at
	`, info.Path, info.Duration, info.Mtime.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) DeleteClipInfo(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM clip_cache WHERE path = ?", path)
	return err
}

func (r *SQLiteRepository) ListClipInfos(ctx context.Context) ([]*ClipInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT path, duration, mtime, updated_at FROM clip_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*ClipInfo
	for rows.Next() {
		var c ClipInfo
		var mtime, updatedAt string
		if err := rows.Scan(&c.Path, &c.Duration, &mtime, &updatedAt); err != nil {
			return nil, err
		}
		c.Mtime, _ = time.Parse(time.RFC3339Nano, mtime)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		infos = append(infos, &c)
	}
	return infos, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*Task, error) {
	var t Task
	var payload, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.Stage, &t.Progress, &t.Message, &t.Error, &payload, &t.OutputPath, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
