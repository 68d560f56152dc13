// Package cron evicts finished tasks on a schedule using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/robfig/cron/v3"
)

// DefaultTTL is how long a finished task stays retrievable.
const DefaultTTL = 30 * time.Minute

// Sweeper periodically deletes tasks that finished more than TTL ago.
type Sweeper struct {
	tasks  sitemd.TaskService
	ttl    time.Duration
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a Sweeper for tasks. A non-positive ttl uses DefaultTTL.
func NewSweeper(tasks sitemd.TaskService, ttl time.Duration, logger *slog.Logger) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		tasks:  tasks,
		ttl:    ttl,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Schedule returns the cron spec used by Start: a sweep every quarter of
// the TTL, at least once a minute.
func (s *Sweeper) Schedule() string {
	return fmt.Sprintf("@every %s", max(s.ttl/4, time.Minute))
}

// Start begins sweeping in the background.
func (s *Sweeper) Start() error {
	schedule := s.Schedule()
	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("task sweeper started", "schedule", schedule, "ttl", s.ttl)
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("task sweeper stopped")
}

// Sweep deletes expired tasks once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.tasks.DeleteExpired(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.logger.Error("sweeping tasks", "err", err)
		return n, err
	}
	if n > 0 {
		s.logger.Info("swept expired tasks", "count", n)
	}
	return n, nil
}
