package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/prometheus"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx       context.Context
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
	Metrics   *prometheus.Metrics
	Tasks     sitemd.TaskService
	Converter sitemd.ConversionService
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	LogLevel  string `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log format"`

	Serve   ServeCmd   `cmd:"" help:"Run the conversion API"`
	Convert ConvertCmd `cmd:"" help:"Convert a website to Markdown"`
	File    FileCmd    `cmd:"" help:"Convert a local document to Markdown"`
}

// CrawlFlags configure how websites are fetched.
type CrawlFlags struct {
	Concurrency int           `short:"c" env:"CRAWL_CONCURRENCY" default:"5" help:"Pages fetched in parallel"`
	Rate        float64       `env:"CRAWL_RATE" default:"0" help:"Requests per second per domain (0 disables)"`
	MaxPages    int           `name:"max-pages" default:"0" help:"Stop after this many pages (0 disables)"`
	Timeout     time.Duration `short:"t" default:"10s" help:"Fetch timeout per request"`
	UserAgent   string        `name:"user-agent" default:"sitemd/1.0 (+https://github.com/fwojciec/sitemd)" help:"User-Agent header"`
	NoRetry     bool          `name:"no-retry" help:"Do not retry failed fetches"`
	Render      bool          `help:"Render pages with headless Chrome"`
	Extract     string        `default:"none" enum:"none,trafilatura,readability" help:"Main-content extraction before conversion"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	CrawlFlags `embed:""`

	Port           int           `env:"PORT" default:"8000" help:"Listen port"`
	Store          string        `env:"SITEMD_STORE" default:"memory" enum:"memory,sqlite,redis" help:"Task store"`
	DB             string        `name:"db" env:"SITEMD_DB" default:"sitemd.db" help:"SQLite database path"`
	RedisAddr      string        `name:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" help:"Redis address"`
	TaskTTL        time.Duration `name:"task-ttl" env:"TASK_TTL" default:"30m" help:"How long finished tasks are kept"`
	JobTimeout     time.Duration `name:"job-timeout" env:"JOB_TIMEOUT" default:"0s" help:"Maximum job run time (0 disables)"`
	MaxCrawlDepth  int           `name:"max-crawl-depth" env:"MAX_CRAWL_DEPTH" default:"5" help:"Largest crawl depth a request may use"`
	AllowedOrigins string        `name:"allowed-origins" env:"ALLOWED_ORIGINS" default:"*" help:"Comma-separated CORS origins"`
	MaxUploadBytes int64         `name:"max-upload-bytes" env:"MAX_UPLOAD_BYTES" default:"33554432" help:"Largest accepted upload"`
}

// ConvertCmd is the "convert" subcommand.
type ConvertCmd struct {
	CrawlFlags `embed:""`

	URL      string `arg:"" help:"Website URL"`
	Depth    int    `short:"d" default:"1" help:"Crawl depth (1-5)"`
	NoImages bool   `name:"no-images" help:"Do not collect images"`
	Out      string `short:"o" type:"path" help:"Write the result and images to this directory instead of stdout"`
}

// FileCmd is the "file" subcommand.
type FileCmd struct {
	Path string `arg:"" type:"existingfile" help:"Document to convert"`
	Out  string `short:"o" type:"path" help:"Write the result to this directory instead of stdout"`
}
