// Package prometheus exposes service metrics with the Prometheus client.
package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitemd"

// Metrics holds the collectors of one process. Each Metrics has its own
// registry so tests do not share state.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fetches         *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	tasks           *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetches by result.",
		}, []string{"result"}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Page fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task transitions by status.",
		}, []string{"status"}),
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Routes are labelled with
// the ServeMux pattern that matched, keeping label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Ensure InstrumentedFetcher implements sitemd.Fetcher at compile time.
var _ sitemd.Fetcher = (*InstrumentedFetcher)(nil)

// InstrumentedFetcher counts and times fetches of an inner Fetcher.
type InstrumentedFetcher struct {
	inner   sitemd.Fetcher
	metrics *Metrics
}

// NewInstrumentedFetcher wraps inner.
func NewInstrumentedFetcher(inner sitemd.Fetcher, m *Metrics) *InstrumentedFetcher {
	return &InstrumentedFetcher{inner: inner, metrics: m}
}

func (f *InstrumentedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	html, err := f.inner.Fetch(ctx, url)
	f.metrics.fetchDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	f.metrics.fetches.WithLabelValues(result).Inc()
	return html, err
}

func (f *InstrumentedFetcher) Close() error {
	return f.inner.Close()
}

// Ensure InstrumentedTaskService implements sitemd.TaskService at compile time.
var _ sitemd.TaskService = (*InstrumentedTaskService)(nil)

// InstrumentedTaskService counts task lifecycle transitions.
type InstrumentedTaskService struct {
	sitemd.TaskService
	metrics *Metrics
}

// NewInstrumentedTaskService wraps inner.
func NewInstrumentedTaskService(inner sitemd.TaskService, m *Metrics) *InstrumentedTaskService {
	return &InstrumentedTaskService{TaskService: inner, metrics: m}
}

func (s *InstrumentedTaskService) CreateTask(ctx context.Context, id string) (*sitemd.Task, error) {
	task, err := s.TaskService.CreateTask(ctx, id)
	if err == nil {
		s.metrics.tasks.WithLabelValues(string(sitemd.TaskPending)).Inc()
	}
	return task, err
}

func (s *InstrumentedTaskService) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	err := s.TaskService.CompleteTask(ctx, id, result)
	if err == nil {
		s.metrics.tasks.WithLabelValues(string(sitemd.TaskCompleted)).Inc()
	}
	return err
}

func (s *InstrumentedTaskService) FailTask(ctx context.Context, id string, message string) error {
	err := s.TaskService.FailTask(ctx, id, message)
	if err == nil {
		s.metrics.tasks.WithLabelValues(string(sitemd.TaskFailed)).Inc()
	}
	return err
}
