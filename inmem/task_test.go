package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/inmem"
	"github.com/fwojciec/sitemd/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskService(t *testing.T) {
	t.Parallel()

	storetest.TaskServiceTests(t, func(t *testing.T) sitemd.TaskService {
		return inmem.NewTaskService()
	})
}

func TestTaskService_DeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := inmem.NewTaskService()
	s.Now = func() time.Time { return now }

	_, err := s.CreateTask(ctx, "old")
	require.NoError(t, err)
	require.NoError(t, s.FailTask(ctx, "old", "boom"))

	now = now.Add(time.Hour)
	_, err = s.CreateTask(ctx, "new")
	require.NoError(t, err)
	require.NoError(t, s.FailTask(ctx, "new", "boom"))

	n, err := s.DeleteExpired(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.FindTaskByID(ctx, "old")
	assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
	_, err = s.FindTaskByID(ctx, "new")
	assert.NoError(t, err)
}

func TestTaskService_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := inmem.NewTaskService()
	_, err := s.CreateTask(ctx, "t1")
	require.NoError(t, err)

	task, err := s.FindTaskByID(ctx, "t1")
	require.NoError(t, err)
	task.Progress = 99

	task, err = s.FindTaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, task.Progress)
}
