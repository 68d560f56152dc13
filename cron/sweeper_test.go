package cron_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fwojciec/sitemd/cron"
	"github.com/fwojciec/sitemd/inmem"
	"github.com/fwojciec/sitemd/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	t.Run("deletes tasks finished before the TTL", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		tasks := inmem.NewTaskService()
		clock := time.Now().Add(-time.Hour)
		tasks.Now = func() time.Time { return clock }

		_, err := tasks.CreateTask(ctx, "old")
		require.NoError(t, err)
		require.NoError(t, tasks.FailTask(ctx, "old", "boom"))

		clock = time.Now()
		_, err = tasks.CreateTask(ctx, "fresh")
		require.NoError(t, err)
		require.NoError(t, tasks.FailTask(ctx, "fresh", "boom"))

		s := cron.NewSweeper(tasks, 30*time.Minute, nil)
		n, err := s.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = tasks.FindTaskByID(ctx, "fresh")
		assert.NoError(t, err)
	})

	t.Run("passes the cutoff to the store", func(t *testing.T) {
		t.Parallel()

		var cutoff time.Time
		tasks := &mock.TaskService{
			DeleteExpiredFn: func(ctx context.Context, before time.Time) (int, error) {
				cutoff = before
				return 0, nil
			},
		}

		start := time.Now()
		_, err := cron.NewSweeper(tasks, 10*time.Minute, nil).Sweep(context.Background())

		require.NoError(t, err)
		assert.WithinDuration(t, start.Add(-10*time.Minute), cutoff, time.Second)
	})

	t.Run("logs store errors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		tasks := &mock.TaskService{
			DeleteExpiredFn: func(ctx context.Context, before time.Time) (int, error) {
				return 0, errors.New("database is locked")
			},
		}

		_, err := cron.NewSweeper(tasks, time.Minute, slog.New(slog.NewTextHandler(&buf, nil))).Sweep(context.Background())

		require.Error(t, err)
		assert.Contains(t, buf.String(), "database is locked")
	})
}

func TestSweeper_Schedule(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "@every 7m30s", cron.NewSweeper(nil, 30*time.Minute, nil).Schedule())
	assert.Equal(t, "@every 1m0s", cron.NewSweeper(nil, time.Minute, nil).Schedule())
	assert.Equal(t, "@every 7m30s", cron.NewSweeper(nil, 0, nil).Schedule())
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	tasks := &mock.TaskService{
		DeleteExpiredFn: func(ctx context.Context, before time.Time) (int, error) {
			return 0, nil
		},
	}
	s := cron.NewSweeper(tasks, time.Hour, nil)

	require.NoError(t, s.Start())
	s.Stop()
}
