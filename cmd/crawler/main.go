package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"page-crawler/internal/config"
	"page-crawler/internal/crawler"
	"page-crawler/internal/crawler/engine"
	"page-crawler/internal/logger"
	"page-crawler/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "crawler [start-url]",
		Short: "Crawl a site and record each page's heading, lead paragraph, links and images",
		Long: `crawler walks every page reachable from a start URL on the same host,
breadth first, and writes one record per page to the selected sink.

Settings come from the environment (and a .env file); flags override them.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.StartURL = args[0]
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	loaded, err := config.Load()
	if err != nil {
		// Surface env errors when the command runs, not at construction.
		loaded = &config.Config{}
		cmd.PreRunE = func(*cobra.Command, []string) error {
			return fmt.Errorf("load config: %w", err)
		}
	}
	cfg = loaded

	flags := cmd.Flags()
	flags.IntVar(&cfg.MaxDepth, "depth", cfg.MaxDepth, "maximum link depth from the start URL (-1 for unlimited)")
	flags.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "maximum number of pages to queue (0 for unlimited)")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "number of concurrent workers")
	flags.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "global request rate limit (0 for unlimited)")
	flags.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "maximum pending frontier entries (0 for unbounded)")
	flags.Uint64Var(&cfg.FetchRetries, "retries", cfg.FetchRetries, "retries for temporary fetch failures")
	flags.BoolVar(&cfg.RespectRobots, "robots", cfg.RespectRobots, "honour robots.txt")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header")
	flags.StringVar(&cfg.Sink, "sink", cfg.Sink, "output sink: jsonl, csv, postgres or sqlite")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "output file for jsonl/csv sinks (- for stdout)")
	flags.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "database DSN or SQLite path")
	flags.BoolVar(&cfg.Progress, "progress", cfg.Progress, "show a progress bar on stderr")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write JSON logs to this rotating file")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	log, closeLog, err := logger.New(cfg.Logging(), stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	sessionID := uuid.NewString()
	sink, closeSink, err := buildSink(ctx, cfg, sessionID, stdout, stderr, log)
	if err != nil {
		return err
	}

	fetcher := crawler.NewHTTPFetcher(cfg.FetcherOptions())
	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.RespectRobots {
		opts = append(opts, engine.WithRobots(crawler.NewRobotsGate(fetcher.Client(), cfg.UserAgent)))
	}

	crawlEngine, err := engine.NewEngine(cfg.CrawlConfig(sessionID), fetcher, crawler.NewHTMLExtractor(), sink, opts...)
	if err != nil {
		return errors.Join(err, closeSink())
	}

	summary, runErr := crawlEngine.Run(ctx)
	closeErr := closeSink()

	fmt.Fprintf(stderr, "session %s: %d attempted, %d succeeded, %d failed, %d skipped, %d URLs visited\n",
		summary.SessionID, summary.Attempted, summary.Succeeded, summary.Failed, summary.Skipped, summary.Visited)

	if errors.Is(runErr, context.Canceled) {
		log.Warn().Msg("crawl interrupted")
		runErr = nil
	}
	return errors.Join(runErr, closeErr)
}

func buildSink(ctx context.Context, cfg *config.Config, sessionID string, stdout, stderr io.Writer, log zerolog.Logger) (crawler.Sink, func() error, error) {
	var (
		sink    crawler.Sink
		closeFn func() error
	)

	switch cfg.Sink {
	case config.SinkJSONLines, config.SinkCSV:
		out, err := openOutput(cfg.Output, stdout)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Sink == config.SinkCSV {
			s := storage.NewCSVSink(out)
			sink, closeFn = s, s.Close
		} else {
			s := storage.NewJSONLinesSink(out)
			sink, closeFn = s, s.Close
		}

	case config.SinkPostgres, config.SinkSQLite:
		dialect, dsn := storage.Postgres, cfg.DatabaseURL
		if cfg.Sink == config.SinkSQLite {
			path, err := cfg.SQLitePath()
			if err != nil {
				return nil, nil, fmt.Errorf("resolve sqlite path: %w", err)
			}
			dialect, dsn = storage.SQLite, path
		}
		store, err := storage.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, nil, err
		}
		batch := storage.NewBatchSink(&storage.PageSink{Storage: store, SessionID: sessionID}, cfg.BatchSize, cfg.FlushInterval, log)
		sink = batch
		closeFn = func() error {
			err := batch.Close()
			if n, cerr := store.CountPages(context.Background(), sessionID); cerr == nil {
				log.Info().Int("pages", n).Str("dialect", string(dialect)).Msg("stored pages")
			}
			return errors.Join(err, store.Close())
		}

	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	if cfg.Progress {
		progress := storage.NewProgressSink(sink, cfg.MaxPages, stderr)
		inner := closeFn
		sink = progress
		closeFn = func() error {
			return errors.Join(progress.Close(), inner())
		}
	}

	return sink, closeFn, nil
}

// stdoutWriter hides Close so sinks never close stdout.
type stdoutWriter struct{ io.Writer }

func openOutput(path string, stdout io.Writer) (io.Writer, error) {
	if path == "" || path == "-" {
		return stdoutWriter{stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}
