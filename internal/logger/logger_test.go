package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "gift-market", Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithUserID(ctx, 7)
	ctx = log.WithItemID(ctx, 3)
	log.Info(ctx, "purchase committed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "gift-market", entries[0]["service"])
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.EqualValues(t, 7, entries[0]["user_id"])
	assert.EqualValues(t, 3, entries[0]["item_id"])
	assert.Equal(t, "purchase committed", entries[0]["message"])
}

func TestLogger_ErrorIncludesCauseAndStack(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "gift-market", Output: &buf})

	log.Error(context.Background(), "commit failed", errors.New("disk full"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, "disk full", entries[0]["error"])
	assert.NotEmpty(t, entries[0]["stack"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
}

func TestLogger_UnsetLevelLogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
