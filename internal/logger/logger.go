// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors config.LogConfig.
type Config struct {
	Level      string
	Format     string // json, text, auto
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// New builds a logger from cfg. The returned closer releases the log file
// and is a no-op for standard streams.
func New(cfg Config) (*slog.Logger, io.Closer) {
	writer, closer, tty := openOutput(cfg)

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	switch {
	case cfg.Format == "text", cfg.Format == "auto" && tty:
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler), closer
}

// Init builds a logger and installs it as slog's default.
func Init(cfg Config) (*slog.Logger, io.Closer) {
	log, closer := New(cfg)
	slog.SetDefault(log)
	return log, closer
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(cfg Config) (io.Writer, io.Closer, bool) {
	switch cfg.Output {
	case "stdout":
		return os.Stdout, nopCloser{}, isatty.IsTerminal(os.Stdout.Fd())
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = "logs/pibt.log"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return os.Stderr, nopCloser{}, isatty.IsTerminal(os.Stderr.Fd())
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		return lj, lj, false
	default:
		return os.Stderr, nopCloser{}, isatty.IsTerminal(os.Stderr.Fd())
	}
}
