//go:build integration && !windows

package rod_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns the DOM after scripts run", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<!DOCTYPE html>
<html><head><title>Menu</title></head>
<body>
<ul id="dishes"><li>placeholder</li></ul>
<script>
document.getElementById('dishes').innerHTML = '<li>Bouillabaisse</li><li>Tarte Tatin</li>';
</script>
</body></html>`))
		}))
		defer srv.Close()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.Contains(t, html, "Bouillabaisse")
		assert.NotContains(t, html, "placeholder")
	})

	t.Run("reports error status as FetchError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		_, err = fetcher.Fetch(context.Background(), srv.URL)

		var fetchErr *sitemd.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.False(t, fetchErr.Temporary())
	})

	t.Run("honours canceled context", func(t *testing.T) {
		t.Parallel()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = fetcher.Fetch(ctx, "http://127.0.0.1:1/")

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("keeps working across browser recycling", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html><body><p>page</p></body></html>`))
		}))
		defer srv.Close()

		fetcher, err := rod.NewFetcher(rod.WithRecycleAfter(2))
		require.NoError(t, err)
		defer fetcher.Close()

		first := fetcher.LauncherPID()
		for range 3 {
			html, err := fetcher.Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Contains(t, html, "page")
		}
		assert.NotEqual(t, first, fetcher.LauncherPID())
	})

	t.Run("fails after close", func(t *testing.T) {
		t.Parallel()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		require.NoError(t, fetcher.Close())

		_, err = fetcher.Fetch(context.Background(), "http://example.com")

		var fetchErr *sitemd.FetchError
		assert.True(t, errors.As(err, &fetchErr))
	})
}

func TestFetcher_Close(t *testing.T) {
	t.Parallel()

	fetcher, err := rod.NewFetcher()
	require.NoError(t, err)

	pid := fetcher.LauncherPID()
	require.NotZero(t, pid)
	require.NoError(t, syscall.Kill(pid, syscall.Signal(0)))

	require.NoError(t, fetcher.Close())
	require.NoError(t, fetcher.Close())

	time.Sleep(100 * time.Millisecond)
	assert.Error(t, syscall.Kill(pid, syscall.Signal(0)))
}
