// Package storetest holds behaviour tests shared by every
// sitemd.TaskService implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TaskServiceTests runs the TaskService behaviour suite. newService must
// return an empty, isolated service for each call.
func TaskServiceTests(t *testing.T, newService func(t *testing.T) sitemd.TaskService) {
	t.Helper()
	ctx := context.Background()

	result := func(id string) *sitemd.ConversionResult {
		return &sitemd.ConversionResult{
			TaskID:   id,
			Markdown: "# Home\n\nhello",
			Metadata: sitemd.ConversionMetadata{
				SourceURL:   "https://example.com",
				Title:       "Home",
				PageCount:   1,
				CrawlDepth:  1,
				ConvertedAt: "2026-01-02T03:04:05Z",
				ContentHash: "abc",
			},
		}
	}

	t.Run("CreateTask stores a pending task", func(t *testing.T) {
		s := newService(t)

		task, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", task.ID)
		assert.Equal(t, sitemd.TaskPending, task.Status)
		assert.Equal(t, 0, task.Progress)

		found, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskPending, found.Status)
		assert.False(t, found.CreatedAt.IsZero())
	})

	t.Run("CreateTask rejects duplicates", func(t *testing.T) {
		s := newService(t)

		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)

		_, err = s.CreateTask(ctx, "t1")
		assert.Equal(t, sitemd.ECONFLICT, sitemd.ErrorCode(err))
	})

	t.Run("CreateTask rejects empty id", func(t *testing.T) {
		s := newService(t)

		_, err := s.CreateTask(ctx, "")
		assert.Equal(t, sitemd.EINVALID, sitemd.ErrorCode(err))
	})

	t.Run("FindTaskByID returns ENOTFOUND", func(t *testing.T) {
		s := newService(t)

		_, err := s.FindTaskByID(ctx, "missing")
		assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
	})

	t.Run("StartTask moves to processing", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)

		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))

		task, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskProcessing, task.Status)
		assert.Equal(t, 10, task.Progress)
		assert.Equal(t, "started", task.Message)
	})

	t.Run("UpdateProgress never decreases progress", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))

		require.NoError(t, s.UpdateProgress(ctx, "t1", 45, "crawling b"))
		require.NoError(t, s.UpdateProgress(ctx, "t1", 28, "crawling a"))

		task, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 45, task.Progress)
		assert.Equal(t, "crawling b", task.Message)

		require.NoError(t, s.UpdateProgress(ctx, "t1", 45, "crawling c"))
		task, err = s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "crawling c", task.Message)
	})

	t.Run("UpdateProgress returns ENOTFOUND for unknown task", func(t *testing.T) {
		s := newService(t)

		err := s.UpdateProgress(ctx, "missing", 50, "x")
		assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
	})

	t.Run("concurrent updates keep the maximum", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))

		var wg sync.WaitGroup
		for i := 20; i <= 70; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.UpdateProgress(ctx, "t1", i, fmt.Sprintf("p%d", i))
			}()
		}
		wg.Wait()

		task, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 70, task.Progress)
	})

	t.Run("CompleteTask stores the result", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))

		require.NoError(t, s.CompleteTask(ctx, "t1", result("t1")))

		task, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskCompleted, task.Status)
		assert.Equal(t, 100, task.Progress)

		got, err := s.FindResultByTaskID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, result("t1").Markdown, got.Markdown)
		assert.Equal(t, result("t1").Metadata, got.Metadata)
		assert.Equal(t, "t1", got.TaskID)
	})

	t.Run("terminal status is set once", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))
		require.NoError(t, s.CompleteTask(ctx, "t1", result("t1")))

		err = s.FailTask(ctx, "t1", "late failure")
		assert.Equal(t, sitemd.ECONFLICT, sitemd.ErrorCode(err))
		err = s.CompleteTask(ctx, "t1", result("t1"))
		assert.Equal(t, sitemd.ECONFLICT, sitemd.ErrorCode(err))

		require.NoError(t, s.UpdateProgress(ctx, "t1", 50, "stale"))
		task, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskCompleted, task.Status)
		assert.Equal(t, 100, task.Progress)
	})

	t.Run("FailTask resets progress and keeps no result", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))
		require.NoError(t, s.UpdateProgress(ctx, "t1", 30, "parsing"))

		require.NoError(t, s.FailTask(ctx, "t1", "Error: corrupt file"))

		task, err := s.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, task.Status)
		assert.Equal(t, 0, task.Progress)
		assert.Equal(t, "Error: corrupt file", task.Message)

		_, err = s.FindResultByTaskID(ctx, "t1")
		assert.Equal(t, sitemd.ENOTREADY, sitemd.ErrorCode(err))
		assert.Contains(t, sitemd.ErrorMessage(err), "failed")
	})

	t.Run("FindResultByTaskID reports not ready with status", func(t *testing.T) {
		s := newService(t)
		_, err := s.CreateTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, s.StartTask(ctx, "t1", 10, "started"))

		_, err = s.FindResultByTaskID(ctx, "t1")
		assert.Equal(t, sitemd.ENOTREADY, sitemd.ErrorCode(err))
		assert.Contains(t, sitemd.ErrorMessage(err), "processing")

		_, err = s.FindResultByTaskID(ctx, "missing")
		assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
	})

	t.Run("DeleteExpired removes finished tasks only", func(t *testing.T) {
		s := newService(t)
		for _, id := range []string{"done", "failed", "running"} {
			_, err := s.CreateTask(ctx, id)
			require.NoError(t, err)
			require.NoError(t, s.StartTask(ctx, id, 10, "started"))
		}
		require.NoError(t, s.CompleteTask(ctx, "done", result("done")))
		require.NoError(t, s.FailTask(ctx, "failed", "boom"))

		n, err := s.DeleteExpired(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = s.DeleteExpired(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.FindTaskByID(ctx, "done")
		assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
		_, err = s.FindResultByTaskID(ctx, "done")
		assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
		_, err = s.FindTaskByID(ctx, "failed")
		assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))

		task, err := s.FindTaskByID(ctx, "running")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskProcessing, task.Status)
	})
}
