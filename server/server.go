// Package server exposes conversion tasks over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/prometheus"
	"github.com/fwojciec/sitemd/task"
	"github.com/google/uuid"
)

// Version is reported by the index endpoint.
const Version = "0.1.0"

// DefaultMaxUploadBytes limits the size of an uploaded document.
const DefaultMaxUploadBytes = 32 << 20

// Server serves the conversion API.
type Server struct {
	Tasks     sitemd.TaskService
	Runner    *task.Runner
	Converter sitemd.ConversionService

	// MaxCrawlDepth clamps the depth a request may ask for.
	MaxCrawlDepth int

	// AllowedOrigins lists CORS origins. "*" allows any origin.
	AllowedOrigins []string

	MaxUploadBytes int64
	UploadDir      string // empty means os.TempDir

	Metrics *prometheus.Metrics // optional

	// NewTaskID generates ids for requests that do not supply one.
	NewTaskID func() string

	Logger *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer returns a Server with default limits.
func NewServer(tasks sitemd.TaskService, runner *task.Runner, conv sitemd.ConversionService) *Server {
	return &Server{
		Tasks:          tasks,
		Runner:         runner,
		Converter:      conv,
		MaxCrawlDepth:  sitemd.MaxCrawlDepth,
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: DefaultMaxUploadBytes,
		NewTaskID:      uuid.NewString,
	}
}

// Handler returns the routed API wrapped in its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/convert/{$}", s.handleConvert)
	mux.HandleFunc("POST /api/convert/file/{$}", s.handleConvertFile)
	mux.HandleFunc("GET /api/tasks/{id}/{$}", s.handleTask)
	mux.HandleFunc("GET /api/tasks/{id}/result/{$}", s.handleResult)

	var h http.Handler = mux
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
		h = s.Metrics.Middleware(h)
	}
	h = s.recoverMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.logMiddleware(h)
	return h
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger().Info("http server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests and
// then for background jobs to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.Runner.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			if slices.Contains(s.AllowedOrigins, "*") {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger().Error("http handler panicked", "path", r.URL.Path, "panic", v)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error."})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// ParseOrigins splits a comma-separated ALLOWED_ORIGINS value.
func ParseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return []string{"*"}
	}
	return origins
}
