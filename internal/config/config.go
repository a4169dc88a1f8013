package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"page-crawler/internal/crawler"
	"page-crawler/internal/logger"
)

const (
	SinkJSONLines = "jsonl"
	SinkCSV       = "csv"
	SinkPostgres  = "postgres"
	SinkSQLite    = "sqlite"
)

type Config struct {
	// StartURL maps to START_URL. It may also come from the command line, so
	// it is checked in Validate rather than marked required.
	StartURL string `envconfig:"START_URL"`

	// MaxDepth maps to MAX_DEPTH. Negative means unlimited.
	MaxDepth int `envconfig:"MAX_DEPTH" default:"-1"`

	// MaxPages maps to MAX_PAGES. Zero means unlimited.
	MaxPages int `envconfig:"MAX_PAGES" default:"0"`

	Workers int `envconfig:"WORKERS" default:"1"`

	// RequestsPerSecond maps to REQUESTS_PER_SECOND. Zero means unlimited.
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"0"`
	Burst             int     `envconfig:"BURST" default:"1"`
	QueueSize         int     `envconfig:"QUEUE_SIZE" default:"0"`

	UserAgent      string        `envconfig:"USER_AGENT" default:"PageCrawler/1.0"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	MaxBodyBytes   int64         `envconfig:"MAX_BODY_BYTES" default:"10485760"`
	FetchRetries   uint64        `envconfig:"FETCH_RETRIES" default:"0"`
	RespectRobots  bool          `envconfig:"RESPECT_ROBOTS" default:"false"`

	// Sink maps to SINK: jsonl, csv, postgres or sqlite.
	Sink string `envconfig:"SINK" default:"jsonl"`
	// Output is the file for jsonl/csv sinks; "-" is stdout.
	Output string `envconfig:"OUTPUT" default:"-"`
	// DatabaseURL maps to DB_URL: a Postgres DSN or a SQLite file path.
	DatabaseURL   string        `envconfig:"DB_URL"`
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"50"`
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL" default:"2s"`
	Progress      bool          `envconfig:"PROGRESS" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	LogFile   string `envconfig:"LOG_FILE"`
}

// Load processes environment variables, after loading .env if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env is normal; only complain about one we could not read.
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("Warning: .env file found but could not be loaded: %v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.StartURL == "" {
		errs = append(errs, errors.New("start URL is required"))
	} else if u, err := url.Parse(c.StartURL); err != nil || u.Hostname() == "" {
		errs = append(errs, fmt.Errorf("start URL %q has no host", c.StartURL))
	} else if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		errs = append(errs, fmt.Errorf("start URL %q must be http or https", c.StartURL))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second must not be negative, got %v", c.RequestsPerSecond))
	}

	switch c.Sink {
	case SinkJSONLines, SinkCSV, SinkSQLite:
	case SinkPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DB_URL is required for the postgres sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", c.Sink))
	}

	return errors.Join(errs...)
}

// CrawlConfig converts the settings that shape a run.
func (c *Config) CrawlConfig(sessionID string) crawler.CrawlConfig {
	return crawler.CrawlConfig{
		SessionID:         sessionID,
		RootURL:           c.StartURL,
		MaxDepth:          c.MaxDepth,
		MaxPages:          c.MaxPages,
		Concurrency:       c.Workers,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		QueueSize:         c.QueueSize,
	}
}

func (c *Config) FetcherOptions() crawler.HTTPFetcherOptions {
	return crawler.HTTPFetcherOptions{
		UserAgent:    c.UserAgent,
		Timeout:      c.RequestTimeout,
		MaxBodyBytes: c.MaxBodyBytes,
		Retries:      c.FetchRetries,
	}
}

func (c *Config) Logging() logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile}
}

// SQLitePath is DB_URL, or crawl.db under the user's XDG data directory.
func (c *Config) SQLitePath() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	return xdg.DataFile("page-crawler/crawl.db")
}
