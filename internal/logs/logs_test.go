package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
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
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewConsoleRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, closer, err := New(Options{Level: "warn", Writer: buf})
	require.NoError(t, err)
	defer closer()

	logger.Info("dropped")
	logger.Warn("kept", "status", 403)

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "status=403")
}

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditgraph.log")
	logger, closer, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("page fetched", "page", 2)
	require.NoError(t, closer())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	assert.Equal(t, "page fetched", entry["msg"])
	assert.Equal(t, float64(2), entry["page"])
}
