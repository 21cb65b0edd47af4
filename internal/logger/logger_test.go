package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", slog.LevelInfo)

	log.Debug("hidden")
	log.Info("resource created", "kind", "bucket", "name", "demo-bucket")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "resource created", record["msg"])
	assert.Equal(t, "demo-bucket", record["name"])
}

func TestNew_TextHasNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", slog.LevelDebug)

	log.Debug("enabling service", "service", "storage.googleapis.com")

	assert.Contains(t, buf.String(), "enabling service")
	assert.Contains(t, buf.String(), "service=storage.googleapis.com")
	assert.NotContains(t, buf.String(), "\x1b[")
}
