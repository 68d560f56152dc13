// Package task runs conversion jobs in the background and records their
// lifecycle in a sitemd.TaskService.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/sitemd"
)

// Progress and message recorded when a job starts running.
const (
	StartProgress = 10
	StartMessage  = "Task started"
)

// Job is a unit of background work. It reports progress through the given
// function and returns the result to store on completion.
type Job func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error)

// Runner schedules jobs. Each submitted job runs in its own goroutine and
// ends in exactly one terminal transition of its task.
type Runner struct {
	Tasks sitemd.TaskService

	// Timeout bounds each job's run time. Zero means no deadline.
	Timeout time.Duration

	Logger *slog.Logger

	wg sync.WaitGroup
}

// NewRunner creates a Runner that records tasks in tasks.
func NewRunner(tasks sitemd.TaskService, logger *slog.Logger) *Runner {
	return &Runner{Tasks: tasks, Logger: logger}
}

// Submit registers a pending task with the given id and starts job in the
// background. The task exists when Submit returns; a duplicate id returns
// ECONFLICT and the job is not started.
//
// The job is detached from ctx cancellation so it outlives the request
// that submitted it.
func (r *Runner) Submit(ctx context.Context, id string, job Job) error {
	if _, err := r.Tasks.CreateTask(ctx, id); err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(context.WithoutCancel(ctx), id, job)
	}()
	return nil
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, id string, job Job) {
	logger := r.logger().With("task", id)
	start := time.Now()

	if err := r.Tasks.StartTask(ctx, id, StartProgress, StartMessage); err != nil {
		logger.Warn("starting task", "err", err)
	}

	jobCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	progress := func(p int, message string) {
		if err := r.Tasks.UpdateProgress(ctx, id, p, message); err != nil {
			logger.Debug("updating progress", "progress", p, "err", err)
		}
	}

	result, err := r.execute(jobCtx, logger, job, progress)
	if err == nil && result == nil {
		err = errors.New("job returned no result")
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && r.Timeout > 0 {
			err = fmt.Errorf("job exceeded %s timeout: %w", r.Timeout, err)
		}
		logger.Error("task failed", "duration", time.Since(start), "err", err)
		r.fail(ctx, logger, id, err)
		return
	}

	result.TaskID = id
	if err := r.Tasks.CompleteTask(ctx, id, result); err != nil {
		logger.Error("recording task result", "err", err)
		r.fail(ctx, logger, id, fmt.Errorf("storing result: %w", err))
		return
	}
	logger.Info("task completed", "duration", time.Since(start))
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, id string, err error) {
	if ferr := r.Tasks.FailTask(ctx, id, FailureMessage(err)); ferr != nil {
		logger.Error("recording task failure", "err", ferr)
	}
}

// FailureMessage renders err for a failed task. Application errors show
// their message in place of the coded form, keeping any wrapping context.
func FailureMessage(err error) string {
	msg := err.Error()
	var e *sitemd.Error
	if errors.As(err, &e) {
		msg = strings.Replace(msg, e.Error(), e.Message, 1)
	}
	return "Error: " + msg
}

// execute runs job, turning a panic into an error. The stack is logged;
// the error carries only the panic value.
func (r *Runner) execute(ctx context.Context, logger *slog.Logger, job Job, progress sitemd.ProgressFunc) (result *sitemd.ConversionResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("job panicked", "panic", v, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panicked: %v", v)
		}
	}()
	return job(ctx, progress)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
