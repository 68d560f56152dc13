package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fwojciec/sitemd/mock"
	sitemdslog "github.com/fwojciec/sitemd/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLogger returns a debug-level text logger writing to buf.
func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("logs successful fetch at debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) (string, error) {
				return "<p>twelve b</p>", nil
			},
		}

		html, err := sitemdslog.NewLoggingFetcher(inner, newLogger(&buf)).Fetch(context.Background(), "https://example.com/menu")

		require.NoError(t, err)
		assert.Equal(t, "<p>twelve b</p>", html)
		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "msg=fetch")
		assert.Contains(t, out, "url=https://example.com/menu")
		assert.Contains(t, out, "bytes=15")
		assert.Contains(t, out, "duration=")
	})

	t.Run("logs failures at warn level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) (string, error) {
				return "", errors.New("connection refused")
			},
		}

		_, err := sitemdslog.NewLoggingFetcher(inner, newLogger(&buf)).Fetch(context.Background(), "https://example.com/")

		require.Error(t, err)
		out := buf.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, `err="connection refused"`)
	})
}

func TestLoggingFetcher_Close(t *testing.T) {
	t.Parallel()

	closed := false
	inner := &mock.Fetcher{
		CloseFn: func() error {
			closed = true
			return nil
		},
	}

	require.NoError(t, sitemdslog.NewLoggingFetcher(inner, slog.New(slog.DiscardHandler)).Close())
	assert.True(t, closed)
}
