// Package inmem provides process-memory implementations of sitemd services.
// State is lost when the process exits.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/sitemd"
)

// Ensure TaskService implements sitemd.TaskService at compile time.
var _ sitemd.TaskService = (*TaskService)(nil)

// TaskService stores tasks and results in maps guarded by a mutex.
type TaskService struct {
	mu      sync.RWMutex
	tasks   map[string]*sitemd.Task
	results map[string]*sitemd.ConversionResult

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewTaskService creates an empty TaskService.
func NewTaskService() *TaskService {
	return &TaskService{
		tasks:   make(map[string]*sitemd.Task),
		results: make(map[string]*sitemd.ConversionResult),
		Now:     time.Now,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, id string) (*sitemd.Task, error) {
	task := &sitemd.Task{ID: id, Status: sitemd.TaskPending, Message: "Task created"}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; ok {
		return nil, sitemd.Errorf(sitemd.ECONFLICT, "task %q already exists", id)
	}
	now := s.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[id] = task

	cp := *task
	return &cp, nil
}

func (s *TaskService) FindTaskByID(ctx context.Context, id string) (*sitemd.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	cp := *task
	return &cp, nil
}

func (s *TaskService) StartTask(ctx context.Context, id string, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.find(id)
	if err != nil {
		return err
	}
	if task.Status != sitemd.TaskPending {
		return sitemd.Errorf(sitemd.ECONFLICT, "task %q is %s", id, task.Status)
	}
	task.Status = sitemd.TaskProcessing
	task.Progress = max(task.Progress, clamp(progress))
	task.Message = message
	task.UpdatedAt = s.Now()
	return nil
}

func (s *TaskService) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.find(id)
	if err != nil {
		return err
	}
	progress = clamp(progress)
	if task.Status.IsTerminal() || progress < task.Progress {
		return nil
	}
	task.Progress = progress
	task.Message = message
	task.UpdatedAt = s.Now()
	return nil
}

func (s *TaskService) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.find(id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return sitemd.Errorf(sitemd.ECONFLICT, "task %q is already %s", id, task.Status)
	}
	now := s.Now()
	task.Status = sitemd.TaskCompleted
	task.Progress = 100
	task.Message = "Conversion complete"
	task.UpdatedAt = now
	task.FinishedAt = now
	s.results[id] = result
	return nil
}

func (s *TaskService) FailTask(ctx context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.find(id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return sitemd.Errorf(sitemd.ECONFLICT, "task %q is already %s", id, task.Status)
	}
	now := s.Now()
	task.Status = sitemd.TaskFailed
	task.Progress = 0
	task.Message = message
	task.UpdatedAt = now
	task.FinishedAt = now
	return nil
}

func (s *TaskService) FindResultByTaskID(ctx context.Context, id string) (*sitemd.ConversionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, err := s.find(id)
	if err != nil {
		return nil, err
	}
	result, ok := s.results[id]
	if task.Status != sitemd.TaskCompleted || !ok {
		return nil, sitemd.NotReady(task.Status)
	}
	return result, nil
}

func (s *TaskService) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, task := range s.tasks {
		if task.Status.IsTerminal() && task.FinishedAt.Before(before) {
			delete(s.tasks, id)
			delete(s.results, id)
			n++
		}
	}
	return n, nil
}

// find returns the stored task. Callers must hold the lock.
func (s *TaskService) find(id string) (*sitemd.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	return task, nil
}

func clamp(progress int) int {
	return min(max(progress, 0), 100)
}
