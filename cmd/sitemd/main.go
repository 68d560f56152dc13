package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/convert"
	"github.com/fwojciec/sitemd/crawl"
	"github.com/fwojciec/sitemd/goquery"
	"github.com/fwojciec/sitemd/htmltomarkdown"
	sitemdhttp "github.com/fwojciec/sitemd/http"
	"github.com/fwojciec/sitemd/inmem"
	"github.com/fwojciec/sitemd/prometheus"
	"github.com/fwojciec/sitemd/readability"
	"github.com/fwojciec/sitemd/redis"
	"github.com/fwojciec/sitemd/rod"
	sitemdslog "github.com/fwojciec/sitemd/slog"
	"github.com/fwojciec/sitemd/sqlite"
	"github.com/fwojciec/sitemd/trafilatura"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Resources opened while wiring; released by Close.
	DB      *sqlite.DB
	Redis   *goredis.Client
	Fetcher sitemd.Fetcher
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases the resources opened by Run.
func (m *Main) Close() error {
	var firstErr error
	if m.Fetcher != nil {
		if err := m.Fetcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.DB != nil {
		if err := m.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("sitemd"),
		kong.Description("Crawl websites and convert documents to Markdown"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'sitemd --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	deps.Logger, err = newLogger(stderr, cli.LogLevel, cli.LogFormat)
	if err != nil {
		return err
	}
	defer m.Close()

	switch cmd := strings.Fields(kongCtx.Command())[0]; cmd {
	case "serve":
		deps.Metrics = prometheus.NewMetrics()
		tasks, err := m.openTaskService(ctx, &cli.Serve)
		if err != nil {
			return err
		}
		deps.Tasks = prometheus.NewInstrumentedTaskService(sitemdslog.NewLoggingTaskService(tasks, deps.Logger), deps.Metrics)
		if deps.Converter, err = m.newConversionService(cli.Serve.CrawlFlags, deps); err != nil {
			return err
		}
	case "convert":
		deps.Tasks = inmem.NewTaskService()
		if deps.Converter, err = m.newConversionService(cli.Convert.CrawlFlags, deps); err != nil {
			return err
		}
	case "file":
		deps.Tasks = inmem.NewTaskService()
		deps.Converter = &convert.Service{
			Files:  htmltomarkdown.NewFileConverter(htmltomarkdown.NewConverter()),
			Logger: deps.Logger,
		}
	}

	return kongCtx.Run(deps)
}

// openTaskService opens the task store selected by the serve flags.
func (m *Main) openTaskService(ctx context.Context, cmd *ServeCmd) (sitemd.TaskService, error) {
	switch cmd.Store {
	case "sqlite":
		m.DB = sqlite.NewDB(cmd.DB)
		if err := m.DB.Open(); err != nil {
			return nil, fmt.Errorf("failed to open database at %q: %w", cmd.DB, err)
		}
		return sqlite.NewTaskService(m.DB), nil
	case "redis":
		m.Redis = goredis.NewClient(&goredis.Options{Addr: cmd.RedisAddr})
		tasks := redis.NewTaskService(m.Redis, cmd.TaskTTL)
		if err := tasks.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %q: %w", cmd.RedisAddr, err)
		}
		return tasks, nil
	default:
		return inmem.NewTaskService(), nil
	}
}

// newConversionService wires the crawler and converters for website jobs.
func (m *Main) newConversionService(flags CrawlFlags, deps *Dependencies) (*convert.Service, error) {
	httpFetcher := sitemdhttp.NewFetcher(
		sitemdhttp.WithTimeout(flags.Timeout),
		sitemdhttp.WithUserAgent(flags.UserAgent),
	)

	var pages sitemd.Fetcher = httpFetcher
	if flags.Render {
		f, err := rod.NewFetcher()
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed to use --render")
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		m.Fetcher = f
		pages = f
	}
	pages = sitemdslog.NewLoggingFetcher(pages, deps.Logger)
	if deps.Metrics != nil {
		pages = prometheus.NewInstrumentedFetcher(pages, deps.Metrics)
	}

	crawler := &crawl.Crawler{
		Fetcher:     pages,
		Assets:      httpFetcher,
		Parser:      goquery.NewParser(),
		Concurrency: flags.Concurrency,
		MaxPages:    flags.MaxPages,
		Logger:      deps.Logger,
	}
	if !flags.NoRetry {
		crawler.RetryDelays = crawl.DefaultRetryDelays()
	}
	if flags.Rate > 0 {
		crawler.RateLimiter = crawl.NewDomainLimiter(flags.Rate)
	}

	conv := htmltomarkdown.NewConverter()
	svc := &convert.Service{
		Crawler:   crawler,
		Converter: conv,
		Files:     htmltomarkdown.NewFileConverter(conv),
		Logger:    deps.Logger,
	}
	switch flags.Extract {
	case "trafilatura":
		svc.Extractor = trafilatura.NewExtractor()
	case "readability":
		svc.Extractor = readability.NewExtractor()
	}
	return svc, nil
}

// newLogger builds the process logger.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
