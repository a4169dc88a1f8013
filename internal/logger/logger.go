package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	File   string // optional rotating log file, always JSON
}

func nopClose() error { return nil }

// New builds a logger writing to out and, if cfg.File is set, to a rotating
// file as well. The returned close func releases the file and must be called
// once logging is done.
func New(cfg Config, out io.Writer) (zerolog.Logger, func() error, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nopClose, fmt.Errorf("unsupported log level %q", cfg.Level)
		}
		level = parsed
	}

	var primary io.Writer
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
		primary = out
	default:
		return zerolog.Nop(), nopClose, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	writer, closeFn := primary, nopClose
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(primary, file)
		closeFn = file.Close
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), closeFn, nil
}
