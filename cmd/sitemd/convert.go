package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/fs"
	"github.com/fwojciec/sitemd/server"
	"github.com/fwojciec/sitemd/task"
	"github.com/google/uuid"
)

// Run executes the convert command.
func (c *ConvertCmd) Run(deps *Dependencies) error {
	job := sitemd.CrawlJob{
		StartURL:      server.NormalizeURL(c.URL),
		MaxDepth:      c.Depth,
		IncludeImages: !c.NoImages,
	}
	if err := job.Validate(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", sitemd.ErrorMessage(err))
		return err
	}

	return runJob(deps, c.Out, func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
		return deps.Converter.ConvertWebsite(ctx, job, progress)
	})
}

// Run executes the file command.
func (c *FileCmd) Run(deps *Dependencies) error {
	name := filepath.Base(c.Path)

	// The conversion removes its input, so it works on a copy.
	tmp, err := copyToTemp(c.Path)
	if err != nil {
		return fmt.Errorf("copying %s: %w", name, err)
	}
	defer os.Remove(tmp)

	return runJob(deps, c.Out, func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
		return deps.Converter.ConvertFile(ctx, tmp, name, progress)
	})
}

// runJob runs job as a task, streaming progress to stderr, and writes the
// result to stdout or to the out directory.
func runJob(deps *Dependencies, out string, job task.Job) error {
	tasks := &progressPrinter{TaskService: deps.Tasks, w: deps.Stderr}
	runner := task.NewRunner(tasks, deps.Logger)

	// Jobs follow the process lifetime so an interrupt stops the crawl.
	ctx := deps.Ctx
	id := uuid.NewString()
	err := runner.Submit(ctx, id, func(_ context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
		return job(ctx, progress)
	})
	if err != nil {
		return err
	}
	runner.Wait()

	t, err := deps.Tasks.FindTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == sitemd.TaskFailed {
		return errors.New(t.Message)
	}

	result, err := deps.Tasks.FindResultByTaskID(ctx, id)
	if err != nil {
		return err
	}

	if out == "" {
		_, err := io.WriteString(deps.Stdout, result.Markdown)
		return err
	}
	return writeResult(deps, out, result)
}

func writeResult(deps *Dependencies, out string, result *sitemd.ConversionResult) error {
	store := fs.NewResultStore(filepath.Dir(out), filepath.Base(out))
	if err := fs.WriteResult(store, result); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Wrote %s (%d pages, %d images)\n",
		store.Dir(), result.Metadata.PageCount, len(result.Images))
	return nil
}

func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "sitemd-file-*"+filepath.Ext(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// progressPrinter echoes progress reports of a task to w.
type progressPrinter struct {
	sitemd.TaskService
	mu sync.Mutex
	w  io.Writer
}

func (p *progressPrinter) StartTask(ctx context.Context, id string, progress int, message string) error {
	p.print(progress, message)
	return p.TaskService.StartTask(ctx, id, progress, message)
}

func (p *progressPrinter) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	p.print(progress, message)
	return p.TaskService.UpdateProgress(ctx, id, progress, message)
}

func (p *progressPrinter) print(progress int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%3d%%] %s\n", progress, message)
}
