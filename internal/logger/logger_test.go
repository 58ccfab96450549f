package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tc.input, got, tc.expected)
		}
	}
}

// decodeLines parses every JSON line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(zapcore.InfoLevel, "json", &buf)

	log.Info("reading applied",
		AuditID("a-1"),
		AssetID("as-1"),
		ActorID("collector-1"),
		Int("index", 3),
		Int64("seq", 7),
		Float64("conformance_pct", 97.5),
		Bool("correction", true),
		Strings("reasons", []string{"LOCATION", "TAG"}),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "reading applied", entry["msg"])
	assert.Equal(t, "a-1", entry["audit_id"])
	assert.Equal(t, "as-1", entry["asset_id"])
	assert.Equal(t, "collector-1", entry["actor_id"])
	assert.Equal(t, 3.0, entry["index"])
	assert.Equal(t, 7.0, entry["seq"])
	assert.Equal(t, 97.5, entry["conformance_pct"])
	assert.Equal(t, true, entry["correction"])
	assert.Equal(t, []any{"LOCATION", "TAG"}, entry["reasons"])
	assert.Equal(t, 1.5, entry["elapsed"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(zapcore.WarnLevel, "json", &buf)

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "error", entries[1]["level"])
}

func TestWithRequestAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(zapcore.InfoLevel, "json", &buf)

	log.WithRequest("req-123").
		WithFields(String("component", "collector")).
		Info("batch done", Int("failures", 0))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0]["request_id"])
	assert.Equal(t, "collector", entries[0]["component"])
	assert.Equal(t, 0.0, entries[0]["failures"])
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(zapcore.InfoLevel, "json", &buf)

	log.Named("ledger").Info("append")
	log.Named("inventory").Named("collector").Info("collect")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "ledger", entries[0]["logger"])
	assert.Equal(t, "inventory.collector", entries[1]["logger"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(zapcore.DebugLevel, "text", &buf)

	log.Debug("audit started", AuditID("a-9"))

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "audit started")
	assert.Contains(t, out, `"audit_id": "a-9"`)
}

func TestDefaultLogger(t *testing.T) {
	original := GetDefault()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(zapcore.InfoLevel, "json", &buf))
	GetDefault().Info("from default")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "from default", entries[0]["msg"])
}

func TestNewNop(t *testing.T) {
	nop := NewNop()
	require.NotNil(t, nop)
	nop.WithFields(AssetID("a-1")).Named("x").Error("discarded")
}
