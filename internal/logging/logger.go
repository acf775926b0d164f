// Package logging builds the slog logger shared by the vault services.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sol-farm/tulipv2-sdk-sub000/internal/config"
)

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"info":    slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func noopClose() error { return nil }

// New returns a logger tagged with the service name, plus a closer for the
// log file when one is open.
func New(serviceName string, cfg config.LogConfig) (*slog.Logger, func() error, error) {
	level, ok := levels[normalize(cfg.Level)]
	if !ok {
		return nil, nil, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", cfg.Level)
	}

	writer, closeWriter, err := resolveWriter(serviceName, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch normalize(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(writer, opts)
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		_ = closeWriter()
		return nil, nil, fmt.Errorf("invalid log format %q (expected text|json)", cfg.Format)
	}

	return slog.New(handler).With("service", serviceName), closeWriter, nil
}

func resolveWriter(serviceName string, cfg config.LogConfig) (io.Writer, func() error, error) {
	switch normalize(cfg.Output) {
	case "", "console":
		return os.Stdout, noopClose, nil
	case "file":
		file, err := openLogFile(serviceName, cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return file, file.Close, nil
	case "both":
		file, err := openLogFile(serviceName, cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return io.MultiWriter(os.Stdout, file), file.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid log output %q (expected console|file|both)", cfg.Output)
	}
}

func openLogFile(serviceName, configuredPath string) (*os.File, error) {
	path := strings.TrimSpace(configuredPath)
	if path == "" {
		path = filepath.Join("logs", serviceName+".log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %q: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return file, nil
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
