package zlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/livehook"
)

var _ livehook.Logger = (*Logger)(nil)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", FormatJSON, &buf)

	logger.Debugf("hidden %d", 1)
	logger.Infof("Lease renewed: subject=%s", "1001")
	logger.With("component", "renewal").Warnf("slow hub")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "Lease renewed: subject=1001", entries[0]["message"])
	assert.Contains(t, entries[0], "time")
	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, "renewal", entries[1]["component"])
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", FormatJSON, &buf)

	_ = logger.With("component", "router")
	logger.Info("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "component")
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warning", 2},
		{"error", 1},
		{"off", 0},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.level, FormatJSON, &buf)

			logger.Debugf("d")
			logger.Infof("i")
			logger.Warnf("w")
			logger.Errorf("e")

			assert.Len(t, decodeLines(t, &buf), tt.want)
		})
	}
}

func TestLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", FormatConsole, &buf)

	logger.Printf("migrated to version %d\n", 1)

	assert.Contains(t, buf.String(), "migrated to version 1")
	assert.Contains(t, buf.String(), "INF")
}
