// Package logging configures structured slog output for PatchRAG:
// text or JSON handlers, optional size-rotated file logging, and
// level parsing shared by the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is "text" or "json".
	Format string
	// FilePath is the log file path. Empty means stderr only.
	FilePath string
	// MaxSizeMB is the per-file size limit before rotation (default 10).
	MaxSizeMB int
	// MaxFiles is how many rotated files to keep (default 5).
	MaxFiles int
	// WriteToStderr also mirrors logs to stderr when file logging is on.
	WriteToStderr bool
}

// DefaultConfig returns stderr text logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        "text",
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DefaultLogPath is where file logging goes unless overridden.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".patchrag", "logs", "patchrag.log")
	}
	return filepath.Join(home, ".patchrag", "logs", "patchrag.log")
}

// Setup builds the logger and returns a cleanup function that flushes
// and closes the log file, if any.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		output = writer
		if cfg.WriteToStderr {
			output = io.MultiWriter(writer, os.Stderr)
		}
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler), cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts a string level to slog.Level.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
