package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fwojciec/sitemd/cron"
	"github.com/fwojciec/sitemd/server"
	"github.com/fwojciec/sitemd/task"
)

// shutdownTimeout bounds how long serve waits for running jobs on exit.
const shutdownTimeout = 30 * time.Second

// Run executes the serve command.
func (c *ServeCmd) Run(deps *Dependencies) error {
	runner := task.NewRunner(deps.Tasks, deps.Logger)
	runner.Timeout = c.JobTimeout

	srv := server.NewServer(deps.Tasks, runner, deps.Converter)
	srv.MaxCrawlDepth = c.MaxCrawlDepth
	srv.AllowedOrigins = server.ParseOrigins(c.AllowedOrigins)
	srv.MaxUploadBytes = c.MaxUploadBytes
	srv.Metrics = deps.Metrics
	srv.Logger = deps.Logger

	sweeper := cron.NewSweeper(deps.Tasks, c.TaskTTL, deps.Logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting sweeper: %w", err)
	}
	defer sweeper.Stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", c.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", c.Port, err)
	}
	fmt.Fprintf(deps.Stdout, "Listening on http://%s (store: %s)\n", ln.Addr(), c.Store)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-deps.Ctx.Done():
	}

	deps.Logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-errCh
}
