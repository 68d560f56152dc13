package task_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/convert"
	"github.com/fwojciec/sitemd/crawl"
	"github.com/fwojciec/sitemd/goquery"
	"github.com/fwojciec/sitemd/inmem"
	"github.com/fwojciec/sitemd/mock"
	"github.com/fwojciec/sitemd/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressLog wraps a TaskService and records every accepted progress value
// a poller could observe.
type progressLog struct {
	sitemd.TaskService
	mu     sync.Mutex
	values []int
}

func (l *progressLog) observe(ctx context.Context, id string) {
	task, err := l.FindTaskByID(ctx, id)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = append(l.values, task.Progress)
}

func (l *progressLog) StartTask(ctx context.Context, id string, progress int, message string) error {
	err := l.TaskService.StartTask(ctx, id, progress, message)
	l.observe(ctx, id)
	return err
}

func (l *progressLog) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	err := l.TaskService.UpdateProgress(ctx, id, progress, message)
	l.observe(ctx, id)
	return err
}

func (l *progressLog) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	err := l.TaskService.CompleteTask(ctx, id, result)
	l.observe(ctx, id)
	return err
}

// rejectingStore fails every CompleteTask call with err.
type rejectingStore struct {
	sitemd.TaskService
	err error
}

func (s *rejectingStore) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	return s.err
}

func TestRunner_Submit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates the task before the job starts", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)
		release := make(chan struct{})

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			<-release
			return &sitemd.ConversionResult{Markdown: "done"}, nil
		})
		require.NoError(t, err)

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Contains(t, []sitemd.TaskStatus{sitemd.TaskPending, sitemd.TaskProcessing}, got.Status)

		close(release)
		r.Wait()
	})

	t.Run("completes with the result", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			progress(50, "halfway")
			return &sitemd.ConversionResult{Markdown: "# Done"}, nil
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)

		result, err := tasks.FindResultByTaskID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", result.TaskID)
		assert.Equal(t, "# Done", result.Markdown)
	})

	t.Run("fails with the error text", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			progress(30, "parsing")
			return nil, errors.New("unexpected end of archive")
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, got.Status)
		assert.Equal(t, 0, got.Progress)
		assert.Contains(t, got.Message, "unexpected end of archive")

		_, err = tasks.FindResultByTaskID(ctx, "t1")
		assert.Equal(t, sitemd.ENOTREADY, sitemd.ErrorCode(err))
	})

	t.Run("shows application error messages without codes", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return nil, fmt.Errorf("convert file a.pdf: %w", sitemd.Errorf(sitemd.EINVALID, `unsupported file type: "pdf"`))
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, `Error: convert file a.pdf: unsupported file type: "pdf"`, got.Message)
	})

	t.Run("fails the task when the result cannot be stored", func(t *testing.T) {
		t.Parallel()

		tasks := &rejectingStore{TaskService: inmem.NewTaskService(), err: errors.New("disk full")}
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return &sitemd.ConversionResult{Markdown: "# Done"}, nil
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, got.Status)
		assert.Equal(t, 0, got.Progress)
		assert.Equal(t, "Error: storing result: disk full", got.Message)

		_, err = tasks.FindResultByTaskID(ctx, "t1")
		assert.Equal(t, sitemd.ENOTREADY, sitemd.ErrorCode(err))
	})

	t.Run("recovers panics as failures", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			panic("nil map write")
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, got.Status)
		assert.Contains(t, got.Message, "nil map write")
		assert.NotContains(t, got.Message, "goroutine")
	})

	t.Run("fails jobs that return no result", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return nil, nil
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, got.Status)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)
		job := func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return &sitemd.ConversionResult{}, nil
		}

		require.NoError(t, r.Submit(ctx, "t1", job))
		err := r.Submit(ctx, "t1", job)
		r.Wait()

		assert.Equal(t, sitemd.ECONFLICT, sitemd.ErrorCode(err))
	})

	t.Run("outlives the submitting context", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)
		reqCtx, cancel := context.WithCancel(ctx)

		err := r.Submit(reqCtx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			cancel()
			time.Sleep(5 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &sitemd.ConversionResult{}, nil
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskCompleted, got.Status)
	})

	t.Run("fails jobs that exceed the timeout", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)
		r.Timeout = 10 * time.Millisecond

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, got.Status)
		assert.Contains(t, got.Message, "timeout")
	})

	t.Run("returns create errors", func(t *testing.T) {
		t.Parallel()

		tasks := &mock.TaskService{
			CreateTaskFn: func(ctx context.Context, id string) (*sitemd.Task, error) {
				return nil, errors.New("store unavailable")
			},
		}
		r := task.NewRunner(tasks, nil)

		err := r.Submit(ctx, "t1", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			t.Error("job must not run")
			return nil, nil
		})

		require.EqualError(t, err, "store unavailable")
	})
}

// site serves pages from memory; missing pages and entries in errors fail.
func site(pages map[string]string, status map[string]int) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(ctx context.Context, url string) (string, error) {
			if code, ok := status[url]; ok {
				return "", &sitemd.FetchError{URL: url, StatusCode: code}
			}
			html, ok := pages[url]
			if !ok {
				return "", &sitemd.FetchError{URL: url, StatusCode: http.StatusNotFound}
			}
			return html, nil
		},
	}
}

func newService(fetcher sitemd.Fetcher) *convert.Service {
	return &convert.Service{
		Crawler: &crawl.Crawler{Fetcher: fetcher, Parser: goquery.NewParser()},
		Converter: &mock.Converter{
			ConvertFn: func(html string, pageURL string) (string, error) {
				return "converted " + pageURL, nil
			},
		},
		Files: &mock.FileConverter{
			ConvertFileFn: func(ctx context.Context, path string, fileType string) (string, error) {
				return "", errors.New("unsupported compression method")
			},
		},
	}
}

func TestRunner_WebsiteConversion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("completes with monotonic checkpoints", func(t *testing.T) {
		t.Parallel()

		fetcher := site(map[string]string{
			"https://example.com": `<title>Home</title><a href="/a">A</a><a href="/b">B</a><a href="https://other.org/">X</a>`,
			"https://example.com/a": `<title>A</title>`,
			"https://example.com/b": `<title>B</title>`,
		}, nil)
		tasks := &progressLog{TaskService: inmem.NewTaskService()}
		r := task.NewRunner(tasks, nil)
		svc := newService(fetcher)
		job := sitemd.CrawlJob{StartURL: "https://example.com", MaxDepth: 1}

		err := r.Submit(ctx, "site", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return svc.ConvertWebsite(ctx, job, progress)
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "site")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskCompleted, got.Status)

		assert.IsNonDecreasing(t, tasks.values)
		assert.Equal(t, 10, tasks.values[0])
		assert.Equal(t, 100, tasks.values[len(tasks.values)-1])
		for _, want := range []int{75, 90, 95} {
			assert.Contains(t, tasks.values, want)
		}

		result, err := tasks.FindResultByTaskID(ctx, "site")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Metadata.PageCount)
		assert.Equal(t, "Home", result.Metadata.Title)
		assert.NotContains(t, result.Markdown, "other.org")
	})

	t.Run("completes with a placeholder when a child fails", func(t *testing.T) {
		t.Parallel()

		fetcher := site(map[string]string{
			"https://example.com":   `<title>Home</title><a href="/ok">OK</a><a href="/down">Down</a>`,
			"https://example.com/ok": `<title>OK</title>`,
		}, map[string]int{"https://example.com/down": http.StatusInternalServerError})
		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)
		svc := newService(fetcher)
		job := sitemd.CrawlJob{StartURL: "https://example.com", MaxDepth: 1}

		err := r.Submit(ctx, "site", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return svc.ConvertWebsite(ctx, job, progress)
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "site")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskCompleted, got.Status)

		result, err := tasks.FindResultByTaskID(ctx, "site")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.Markdown, "# Home"))
		assert.Contains(t, result.Markdown, "# https://example.com/down")
		assert.Contains(t, result.Markdown, "HTTP 500")
		assert.Equal(t, 1, result.Metadata.FailedCount)
	})

	t.Run("file conversion error fails the task", func(t *testing.T) {
		t.Parallel()

		tasks := inmem.NewTaskService()
		r := task.NewRunner(tasks, nil)
		svc := newService(site(nil, nil))
		path := t.TempDir() + "/upload"

		err := r.Submit(ctx, "file", func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
			return svc.ConvertFile(ctx, path, "archive.html", progress)
		})
		require.NoError(t, err)
		r.Wait()

		got, err := tasks.FindTaskByID(ctx, "file")
		require.NoError(t, err)
		assert.Equal(t, sitemd.TaskFailed, got.Status)
		assert.Equal(t, 0, got.Progress)
		assert.Contains(t, got.Message, "unsupported compression method")

		_, err = tasks.FindResultByTaskID(ctx, "file")
		assert.Equal(t, sitemd.ENOTREADY, sitemd.ErrorCode(err))
	})
}
