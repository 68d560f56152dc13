package sitemd

import (
	"context"
	"time"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

// Task statuses. Completed and failed are terminal.
const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task tracks the progress of one background conversion job.
type Task struct {
	ID         string     `json:"task_id"`
	Status     TaskStatus `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"-"`
	UpdatedAt  time.Time  `json:"-"`
	FinishedAt time.Time  `json:"-"`
}

// Validate returns an error if the task contains invalid fields.
func (t *Task) Validate() error {
	if t.ID == "" {
		return Errorf(EINVALID, "task ID required")
	}
	if t.Progress < 0 || t.Progress > 100 {
		return Errorf(EINVALID, "task progress must be between 0 and 100")
	}
	return nil
}

// ProgressFunc receives progress updates from a running job.
// Progress is a percentage in the range 0-100.
type ProgressFunc func(progress int, message string)

// TaskService stores tasks and their results.
//
// Progress updates are a max-merge: UpdateProgress never lowers the stored
// value and is ignored once a task has reached a terminal status. The only
// way progress decreases is FailTask, which resets it to 0.
type TaskService interface {
	// CreateTask registers a new pending task with progress 0.
	// Returns ECONFLICT if a task with the same ID exists.
	CreateTask(ctx context.Context, id string) (*Task, error)

	// FindTaskByID retrieves a task.
	// Returns ENOTFOUND if the task does not exist.
	FindTaskByID(ctx context.Context, id string) (*Task, error)

	// StartTask moves a pending task to processing.
	StartTask(ctx context.Context, id string, progress int, message string) error

	// UpdateProgress records progress if it does not decrease the stored value.
	UpdateProgress(ctx context.Context, id string, progress int, message string) error

	// CompleteTask stores the result and marks the task completed at 100%.
	// Returns ECONFLICT if the task is already terminal.
	CompleteTask(ctx context.Context, id string, result *ConversionResult) error

	// FailTask marks the task failed with progress reset to 0.
	// Returns ECONFLICT if the task is already terminal.
	FailTask(ctx context.Context, id string, message string) error

	// FindResultByTaskID retrieves the result of a completed task.
	// Returns ENOTFOUND if the task does not exist and ENOTREADY if
	// it has not completed.
	FindResultByTaskID(ctx context.Context, id string) (*ConversionResult, error)

	// DeleteExpired removes terminal tasks, and their results, that
	// finished before the given time. Returns the number removed.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// NotReady returns the error reported when a result is requested for a
// task that has not completed.
func NotReady(status TaskStatus) *Error {
	return Errorf(ENOTREADY, "task has not completed (current status: %s)", status)
}
