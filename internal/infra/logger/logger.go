package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"canvaschat/internal/infra/config"
)

// redactedKeys are attribute keys whose values never reach the log output.
var redactedKeys = map[string]bool{
	"token":         true,
	"authorization": true,
	"dsn":           true,
	"password":      true,
}

// New creates a configured *slog.Logger tagged with the service name.
// The returned closer function should be deferred to flush/close file handles.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	writer, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return NewWithWriter(writer, cfg), closer, nil
}

// NewWithWriter builds the logger on an explicit writer.
func NewWithWriter(w io.Writer, cfg config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "canvaschat")
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] && a.Value.String() != "" {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// parseLevel converts a string level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// openOutput returns an io.Writer for the specified output target.
func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
