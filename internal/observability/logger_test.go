package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
	assert.Nil(t, cfg.Writer)
}

func TestNewLogger(t *testing.T) {
	t.Run("json output honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "warn", Format: "json", Writer: &buf})

		logger.Info().Msg("dropped")
		assert.Empty(t, buf.String())

		logger.Warn().Str("source", "unpaywall").Msg("kept")
		logEntry := decodeEntry(t, &buf)
		assert.Equal(t, "kept", logEntry["message"])
		assert.Equal(t, "warn", logEntry["level"])
		assert.Equal(t, "unpaywall", logEntry["source"])
		assert.Contains(t, logEntry, "time")
	})

	t.Run("console output is not json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "info", Format: "console", Writer: &buf})

		logger.Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(buf.Bytes()))
	})

	t.Run("caller when requested", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "debug", Writer: &buf, AddSource: true})

		logger.Debug().Msg("x")
		assert.Contains(t, decodeEntry(t, &buf), "caller")
	})

	t.Run("level is not global", func(t *testing.T) {
		before := zerolog.GlobalLevel()
		NewLogger(LoggingConfig{Level: "error", Writer: &bytes.Buffer{}})
		assert.Equal(t, before, zerolog.GlobalLevel())
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"FATAL", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"PANIC", zerolog.PanicLevel},
		{" Debug ", zerolog.DebugLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	return logEntry
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(zerolog.New(&buf), "resolver")
	logger.Info().Msg("x")

	assert.Equal(t, "resolver", decodeEntry(t, &buf)["component"])
}

func TestFromContext(t *testing.T) {
	t.Run("adds request fields", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithOperation(WithRequestID(context.Background(), "req-1"), "merge")

		FromContext(ctx, zerolog.New(&buf)).Info().Msg("x")

		logEntry := decodeEntry(t, &buf)
		assert.Equal(t, "req-1", logEntry["request_id"])
		assert.Equal(t, "merge", logEntry["operation"])
	})

	t.Run("omits absent fields", func(t *testing.T) {
		var buf bytes.Buffer
		FromContext(context.Background(), zerolog.New(&buf)).Info().Msg("x")

		logEntry := decodeEntry(t, &buf)
		assert.NotContains(t, logEntry, "request_id")
		assert.NotContains(t, logEntry, "operation")
	})
}

func TestFromContext_KeepsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(zerolog.New(&buf), "fetcher")

	ctx := WithOperation(WithRequestID(context.Background(), "req-1"), "metadata")
	FromContext(ctx, logger).Warn().Str("source", "meta-sparql").Msg("chunk degraded")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", logEntry["request_id"])
	assert.Equal(t, "metadata", logEntry["operation"])
	assert.Equal(t, "fetcher", logEntry["component"])
	assert.Equal(t, "meta-sparql", logEntry["source"])
}
