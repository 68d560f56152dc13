package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/sitemd"
)

// Compile-time interface verification.
var _ sitemd.TaskService = (*TaskService)(nil)

// TaskService implements sitemd.TaskService using SQLite.
//
// Every transition is a single conditional UPDATE, so concurrent progress
// reports are applied as a max-merge without read-modify-write races.
type TaskService struct {
	db *DB

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(db *DB) *TaskService {
	return &TaskService{db: db, Now: time.Now}
}

// CreateTask registers a new pending task.
func (s *TaskService) CreateTask(ctx context.Context, id string) (*sitemd.Task, error) {
	task := &sitemd.Task{ID: id, Status: sitemd.TaskPending, Message: "Task created"}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, status, progress, message, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, task.ID, task.Status, task.Message, formatTime(now), formatTime(now))
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, sitemd.Errorf(sitemd.ECONFLICT, "task %q already exists", id)
	}

	return task, nil
}

// FindTaskByID retrieves a task by ID.
func (s *TaskService) FindTaskByID(ctx context.Context, id string) (*sitemd.Task, error) {
	var task sitemd.Task
	var status, createdAt, updatedAt, finishedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, progress, message, created_at, updated_at, finished_at
		FROM tasks
		WHERE id = ?
	`, id).Scan(&task.ID, &status, &task.Progress, &task.Message, &createdAt, &updatedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	if err != nil {
		return nil, err
	}
	task.Status = sitemd.TaskStatus(status)

	if task.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	if task.FinishedAt, err = parseTime(finishedAt, "finished_at"); err != nil {
		return nil, err
	}

	return &task, nil
}

// StartTask moves a pending task to processing.
func (s *TaskService) StartTask(ctx context.Context, id string, progress int, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, progress = MAX(progress, ?), message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, sitemd.TaskProcessing, clamp(progress), message, formatTime(s.Now()), id, sitemd.TaskPending)
	if err != nil {
		return err
	}
	return checkTransition(ctx, s.db, res, id)
}

// UpdateProgress records progress unless it would decrease the stored value
// or the task is terminal. Ignored updates are not errors.
func (s *TaskService) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET progress = ?, message = ?, updated_at = ?
		WHERE id = ? AND progress <= ? AND status IN (?, ?)
	`, clamp(progress), message, formatTime(s.Now()), id, clamp(progress), sitemd.TaskPending, sitemd.TaskProcessing)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		// Distinguish an ignored update from an unknown task.
		_, err := s.FindTaskByID(ctx, id)
		return err
	}
	return nil
}

// CompleteTask stores the result and marks the task completed.
func (s *TaskService) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(s.Now())
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, progress = 100, message = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, sitemd.TaskCompleted, "Conversion complete", now, now, id, sitemd.TaskPending, sitemd.TaskProcessing)
	if err != nil {
		return err
	}
	if err := checkTransition(ctx, tx, res, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (task_id, markdown, metadata) VALUES (?, ?, ?)
	`, id, result.Markdown, string(metadata)); err != nil {
		return err
	}

	return tx.Commit()
}

// FailTask marks the task failed with progress reset to 0.
func (s *TaskService) FailTask(ctx context.Context, id string, message string) error {
	now := formatTime(s.Now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, progress = 0, message = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, sitemd.TaskFailed, message, now, now, id, sitemd.TaskPending, sitemd.TaskProcessing)
	if err != nil {
		return err
	}
	return checkTransition(ctx, s.db, res, id)
}

// FindResultByTaskID retrieves the result of a completed task.
func (s *TaskService) FindResultByTaskID(ctx context.Context, id string) (*sitemd.ConversionResult, error) {
	var status string
	var markdown, metadata sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT t.status, r.markdown, r.metadata
		FROM tasks t
		LEFT JOIN results r ON r.task_id = t.id
		WHERE t.id = ?
	`, id).Scan(&status, &markdown, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	if err != nil {
		return nil, err
	}
	if sitemd.TaskStatus(status) != sitemd.TaskCompleted || !markdown.Valid {
		return nil, sitemd.NotReady(sitemd.TaskStatus(status))
	}

	result := &sitemd.ConversionResult{TaskID: id, Markdown: markdown.String}
	if err := json.Unmarshal([]byte(metadata.String), &result.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return result, nil
}

// DeleteExpired removes terminal tasks that finished before the given time.
// Results are removed by the foreign key cascade.
func (s *TaskService) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE status IN (?, ?) AND finished_at != '' AND finished_at < ?
	`, sitemd.TaskCompleted, sitemd.TaskFailed, formatTime(before))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// rowQuerier is satisfied by *DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkTransition turns an UPDATE that matched no rows into ENOTFOUND or
// ECONFLICT. Inside a transaction q must be the transaction, since the
// database allows a single connection.
func checkTransition(ctx context.Context, q rowQuerier, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	if err != nil {
		return err
	}
	return sitemd.Errorf(sitemd.ECONFLICT, "task %q is %s", id, status)
}

func clamp(progress int) int {
	return min(max(progress, 0), 100)
}
