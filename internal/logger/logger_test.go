package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLevel(t *testing.T) {
	level := zerolog.GlobalLevel()
	format := zerolog.TimeFieldFormat
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = format
	})
}

func TestSanitize(t *testing.T) {
	got := sanitize(Config{})
	assert.Equal(t, Config{Level: "info", Format: FormatJSON, Output: "stdout", TimeFormat: time.RFC3339}, got)

	kept := Config{Level: "debug", Format: FormatConsole, Output: "stderr", TimeFormat: time.Kitchen}
	assert.Equal(t, kept, sanitize(kept))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "console debug", cfg: Config{Level: "debug", Format: FormatConsole}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	restoreLevel(t)
	var buf bytes.Buffer

	log, err := NewWithWriter(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "relay").Msg("shown")

	var entry map[string]any
	require.NoError(t, sonic.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "relay", entry["component"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	restoreLevel(t)
	var buf bytes.Buffer

	log, err := NewWithWriter(Config{Format: FormatConsole}, &buf)
	require.NoError(t, err)
	log.Info().Msg("hello console")

	assert.Contains(t, buf.String(), "hello console")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNew_FileOutput(t *testing.T) {
	restoreLevel(t)
	path := filepath.Join(t.TempDir(), "relay.log")

	log, err := New(Config{Output: path})
	require.NoError(t, err)
	log.Info().Msg("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNew_BadOutput(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "relay.log")})
	assert.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	restoreLevel(t)

	require.NoError(t, SetLevel("DEBUG"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("chatty"))
}
