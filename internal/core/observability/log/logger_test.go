package log

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: " error ", want: LevelError},
		{in: "fatal", want: LevelFatal},
		{in: "verbose", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelTextRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal} {
		text, err := level.MarshalText()
		require.NoError(t, err)

		var parsed Level
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, level, parsed)
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventnet.log")

	cfg := DefaultConfig()
	cfg.File = path
	cfg.Level = LevelDebug
	logger := NewWithConfig(cfg)

	logger.With(String("transport", "websocket")).Info("frame received",
		Int("length", 42),
		Uint64("total", 7),
		Duration("elapsed", 3*time.Millisecond),
		Bool("ok", true),
		Error(errors.New("boom")),
	)
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.Equal(t, "frame received", entry["msg"])
	assert.Equal(t, "websocket", entry["transport"])
	assert.EqualValues(t, 42, entry["length"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.log")

	cfg := DefaultConfig()
	cfg.File = path
	cfg.Level = LevelWarn
	logger := NewWithConfig(cfg)

	logger.Info("dropped")
	logger.Log(LevelDebug, "dropped too")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))

	logger := NewNop()
	assert.Same(t, logger, OrNop(logger))
	assert.NotPanics(t, func() { OrNop(nil).Error("ignored", Error(nil)) })
}
