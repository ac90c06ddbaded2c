package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is json, or console/pretty for human readable output.
	Format string

	// Output is stdout or stderr. Ignored when Writer is set.
	Output string

	// Writer overrides Output, mostly for the CLI and tests.
	Writer io.Writer

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns the configuration used when nothing else is set.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds a zerolog logger from cfg. The level is applied to the
// returned logger only; the zerolog global level is left alone.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	out := cfg.Writer
	if out == nil {
		out = os.Stdout
		if strings.EqualFold(cfg.Output, "stderr") {
			out = os.Stderr
		}
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(parseLevel(cfg.Level))
}

// parseLevel maps a configured level name to a zerolog level, defaulting to
// info for anything it does not recognize.
func parseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return l
}

// WithComponent derives a child logger for one pipeline component.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// FromContext returns logger enriched with the request id and operation
// stored in ctx, if any.
func FromContext(ctx context.Context, logger zerolog.Logger) *zerolog.Logger {
	l := logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.Str("request_id", id)
	}
	if op := OperationFromContext(ctx); op != "" {
		l = l.Str("operation", op)
	}
	enriched := l.Logger()
	return &enriched
}
