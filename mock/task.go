package mock

import (
	"context"
	"time"

	"github.com/fwojciec/sitemd"
)

var (
	_ sitemd.TaskService = (*TaskService)(nil)
	_ sitemd.ResultStore = (*ResultStore)(nil)
)

// TaskService is a mock implementation of sitemd.TaskService.
type TaskService struct {
	CreateTaskFn         func(ctx context.Context, id string) (*sitemd.Task, error)
	FindTaskByIDFn       func(ctx context.Context, id string) (*sitemd.Task, error)
	StartTaskFn          func(ctx context.Context, id string, progress int, message string) error
	UpdateProgressFn     func(ctx context.Context, id string, progress int, message string) error
	CompleteTaskFn       func(ctx context.Context, id string, result *sitemd.ConversionResult) error
	FailTaskFn           func(ctx context.Context, id string, message string) error
	FindResultByTaskIDFn func(ctx context.Context, id string) (*sitemd.ConversionResult, error)
	DeleteExpiredFn      func(ctx context.Context, before time.Time) (int, error)
}

func (s *TaskService) CreateTask(ctx context.Context, id string) (*sitemd.Task, error) {
	return s.CreateTaskFn(ctx, id)
}

func (s *TaskService) FindTaskByID(ctx context.Context, id string) (*sitemd.Task, error) {
	return s.FindTaskByIDFn(ctx, id)
}

func (s *TaskService) StartTask(ctx context.Context, id string, progress int, message string) error {
	return s.StartTaskFn(ctx, id, progress, message)
}

func (s *TaskService) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	return s.UpdateProgressFn(ctx, id, progress, message)
}

func (s *TaskService) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	return s.CompleteTaskFn(ctx, id, result)
}

func (s *TaskService) FailTask(ctx context.Context, id string, message string) error {
	return s.FailTaskFn(ctx, id, message)
}

func (s *TaskService) FindResultByTaskID(ctx context.Context, id string) (*sitemd.ConversionResult, error) {
	return s.FindResultByTaskIDFn(ctx, id)
}

func (s *TaskService) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return s.DeleteExpiredFn(ctx, before)
}

// ResultStore is a mock implementation of sitemd.ResultStore.
type ResultStore struct {
	SaveFn   func(result *sitemd.ConversionResult) error
	CommitFn func() error
	AbortFn  func() error
}

func (s *ResultStore) Save(result *sitemd.ConversionResult) error {
	return s.SaveFn(result)
}

func (s *ResultStore) Commit() error {
	return s.CommitFn()
}

func (s *ResultStore) Abort() error {
	return s.AbortFn()
}
