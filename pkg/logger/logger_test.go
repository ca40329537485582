package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "staging", LogLevel: "info", LogFormat: "json"}, &buf)

	log.Debug("hidden")
	log.Info("forecast started")
	log.Errorf("model %s failed", "seasonal")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "forecast started", entries[0]["message"])
	assert.Equal(t, ServiceName, entries[0]["service"])
	assert.Equal(t, "staging", entries[0]["env"])
	assert.Equal(t, "model seasonal failed", entries[1]["message"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"}, &buf)
	log.Debug("fitting arima")

	out := buf.String()
	assert.Contains(t, out, "fitting arima")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "debug"}, &buf)

	log.WithField("run_id", "abc").Info("one")
	log.WithFields(map[string]any{"horizon": 7, "location": "Bogor"}).Warn("two")
	log.WithError(errors.New("archive unavailable")).Error("three")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "abc", entries[0]["run_id"])
	assert.Equal(t, float64(7), entries[1]["horizon"])
	assert.Equal(t, "Bogor", entries[1]["location"])
	assert.Equal(t, "archive unavailable", entries[2]["error"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info"}, &buf)

	zl := log.Component("forecast.orchestrator")
	zl.Info().Int("models", 4).Msg("run finished")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "forecast.orchestrator", entries[0]["component"])
	assert.Equal(t, float64(4), entries[0]["models"])
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("dropped")
	assert.Equal(t, zerolog.Disabled, log.Zerolog().GetLevel())
}
