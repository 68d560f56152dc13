package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/sitemd"
)

// Ensure LoggingTaskService implements sitemd.TaskService.
var _ sitemd.TaskService = (*LoggingTaskService)(nil)

// LoggingTaskService logs task lifecycle transitions. Progress updates and
// reads are logged at debug level.
type LoggingTaskService struct {
	next   sitemd.TaskService
	logger *slog.Logger
}

// NewLoggingTaskService creates a new LoggingTaskService.
func NewLoggingTaskService(next sitemd.TaskService, logger *slog.Logger) *LoggingTaskService {
	return &LoggingTaskService{next: next, logger: logger}
}

func (s *LoggingTaskService) CreateTask(ctx context.Context, id string) (task *sitemd.Task, err error) {
	defer func() {
		s.logger.Info("task created", "task", id, "err", err)
	}()
	return s.next.CreateTask(ctx, id)
}

func (s *LoggingTaskService) FindTaskByID(ctx context.Context, id string) (*sitemd.Task, error) {
	return s.next.FindTaskByID(ctx, id)
}

func (s *LoggingTaskService) StartTask(ctx context.Context, id string, progress int, message string) (err error) {
	defer func() {
		s.logger.Info("task started", "task", id, "err", err)
	}()
	return s.next.StartTask(ctx, id, progress, message)
}

func (s *LoggingTaskService) UpdateProgress(ctx context.Context, id string, progress int, message string) (err error) {
	defer func() {
		s.logger.Debug("task progress", "task", id, "progress", progress, "message", message, "err", err)
	}()
	return s.next.UpdateProgress(ctx, id, progress, message)
}

func (s *LoggingTaskService) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) (err error) {
	defer func() {
		if result == nil {
			s.logger.Info("task completed", "task", id, "err", err)
			return
		}
		s.logger.Info("task completed",
			"task", id,
			"bytes", len(result.Markdown),
			"pages", result.Metadata.PageCount,
			"err", err,
		)
	}()
	return s.next.CompleteTask(ctx, id, result)
}

func (s *LoggingTaskService) FailTask(ctx context.Context, id string, message string) (err error) {
	defer func() {
		s.logger.Warn("task failed", "task", id, "message", message, "err", err)
	}()
	return s.next.FailTask(ctx, id, message)
}

func (s *LoggingTaskService) FindResultByTaskID(ctx context.Context, id string) (*sitemd.ConversionResult, error) {
	return s.next.FindResultByTaskID(ctx, id)
}

func (s *LoggingTaskService) DeleteExpired(ctx context.Context, before time.Time) (n int, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("delete expired tasks",
			"before", before,
			"count", n,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DeleteExpired(ctx, before)
}
