package prometheus_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/inmem"
	"github.com/fwojciec/sitemd/mock"
	"github.com/fwojciec/sitemd/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape returns the exposition text of m.
func scrape(t *testing.T, m *prometheus.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Middleware(t *testing.T) {
	t.Parallel()

	m := prometheus.NewMetrics()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware(mux)

	for _, path := range []string{"/api/tasks/a/", "/api/tasks/b/"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `sitemd_http_requests_total{code="404",method="GET",route="GET /api/tasks/{id}/"} 2`)
	assert.Contains(t, out, `sitemd_http_request_duration_seconds_count{route="GET /api/tasks/{id}/"} 2`)
}

func TestInstrumentedFetcher(t *testing.T) {
	t.Parallel()

	m := prometheus.NewMetrics()
	calls := 0
	inner := &mock.Fetcher{
		FetchFn: func(ctx context.Context, url string) (string, error) {
			calls++
			if calls == 2 {
				return "", errors.New("timeout")
			}
			return "<p>ok</p>", nil
		},
		CloseFn: func() error { return nil },
	}
	f := prometheus.NewInstrumentedFetcher(inner, m)

	html, err := f.Fetch(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", html)
	_, err = f.Fetch(context.Background(), "https://example.com/x")
	require.Error(t, err)
	require.NoError(t, f.Close())

	out := scrape(t, m)
	assert.Contains(t, out, `sitemd_fetches_total{result="ok"} 1`)
	assert.Contains(t, out, `sitemd_fetches_total{result="error"} 1`)
	assert.Contains(t, out, `sitemd_fetch_duration_seconds_count 2`)
}

func TestInstrumentedTaskService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := prometheus.NewMetrics()
	s := prometheus.NewInstrumentedTaskService(inmem.NewTaskService(), m)

	_, err := s.CreateTask(ctx, "a")
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(ctx, "a", &sitemd.ConversionResult{}))
	require.NoError(t, s.FailTask(ctx, "b", "boom"))
	require.Error(t, s.FailTask(ctx, "a", "late"))

	out := scrape(t, m)
	assert.Contains(t, out, `sitemd_tasks_total{status="pending"} 2`)
	assert.Contains(t, out, `sitemd_tasks_total{status="completed"} 1`)
	assert.Contains(t, out, `sitemd_tasks_total{status="failed"} 1`)
}
