package logger

import (
	"io"
	"log/slog"
	"os"

	"skyquery-bot/internal/config"
)

// Logger is the process-wide structured logger. It discards output until
// InitLogger runs so packages can log from tests without setup.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	InitLoggerWithWriter(cfg.GinMode, os.Stdout)
}

// InitLoggerWithWriter is InitLogger with an explicit sink; used by the CLIs.
func InitLoggerWithWriter(mode string, w io.Writer) {
	level := slog.LevelInfo
	if mode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: mode == "debug", // Only add source in debug mode
	}

	Logger = slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// With returns a child logger carrying the given attributes
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
