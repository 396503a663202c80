package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "json", Output: &buf})

	logger.WithFields(slog.String("component", "schema_cache")).Info("discovered tables", slog.Int("count", 3))
	logger.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "discovered tables", entry["msg"])
	assert.Equal(t, "schema_cache", entry["component"])
	assert.EqualValues(t, 3, entry["count"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWithDatabase(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "json", Output: &buf}).WithDatabase("localhost", "sakila")
	logger.Info("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	db, ok := entry["db"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "localhost", db["host"])
	assert.Equal(t, "sakila", db["name"])
}

func TestMultiHandler_WritesToAll(t *testing.T) {
	var a, b bytes.Buffer
	h := newMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With(slog.String("k", "v"))

	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	logger.Info("first")
	logger.Warn("second")

	assert.Contains(t, a.String(), "first")
	assert.Contains(t, a.String(), "second")
	assert.NotContains(t, b.String(), "first")
	assert.Contains(t, b.String(), "second")
	assert.Contains(t, b.String(), "k=v")
}

func TestContextRoundTrip(t *testing.T) {
	logger := NewLogger(Config{Output: &bytes.Buffer{}})
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()).Logger)
}
