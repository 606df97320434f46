package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validYAML = `
bot:
  name: relaybot
  uid: 900
  channel: somechannel
capture:
  mode: tcp
  listen: 127.0.0.1:0
sinks:
  stdout: false
  websocket_listen: 127.0.0.1:9500
kafka:
  enabled: true
  brokers: [localhost:9092]
  topic: chat
  batch_timeout: 20ms
logger:
  level: debug
  format: console
metrics:
  listen: 127.0.0.1:9100
`

func TestLoad_YAML(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, "relay.yaml", validYAML)).Load()
	require.NoError(t, err)

	assert.Equal(t, "relaybot", cfg.Bot.Name)
	assert.Equal(t, uint64(900), cfg.Bot.UID)
	assert.Equal(t, ModeTCP, cfg.Capture.Mode)
	assert.Equal(t, "127.0.0.1:0", cfg.Capture.Listen)
	assert.Equal(t, uint32(1<<20), cfg.Capture.MaxFrame)
	assert.False(t, cfg.Sinks.Stdout)
	assert.Equal(t, "127.0.0.1:9500", cfg.Sinks.WebSocketListen)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 20*time.Millisecond, cfg.Kafka.BatchTimeout)
	assert.Equal(t, 100, cfg.Kafka.BatchSize)
	assert.True(t, cfg.Kafka.Async)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "relay.toml", `
[capture]
mode = "cdp"
path = "frames.jsonl"
`)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ModeCDP, cfg.Capture.Mode)
	assert.Equal(t, "frames.jsonl", cfg.Capture.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TROVOCHAT_BOT_NAME", "envbot")
	t.Setenv("TROVOCHAT_CAPTURE_MODE", "websocket")
	t.Setenv("TROVOCHAT_CAPTURE_URL", "wss://feed.example/chat")
	t.Setenv("TROVOCHAT_KAFKA_ENABLED", "false")

	cfg, err := NewLoader(writeConfig(t, "relay.yaml", validYAML)).Load()
	require.NoError(t, err)

	assert.Equal(t, "envbot", cfg.Bot.Name)
	assert.Equal(t, ModeWebSocket, cfg.Capture.Mode)
	assert.Equal(t, "wss://feed.example/chat", cfg.Capture.URL)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("TROVOCHAT_CAPTURE_URL", "ws://127.0.0.1:9000/")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, ModeWebSocket, cfg.Capture.Mode)
	assert.True(t, cfg.Sinks.Stdout)
	assert.Equal(t, "en-US", cfg.Bot.Locale)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			wantErr: ErrConfigNotFound,
		},
		{
			name: "unknown key",
			path: func(t *testing.T) string {
				return writeConfig(t, "relay.yaml", "capture:\n  mode: cdp\n  path: x\n  bogus: 1\n")
			},
			wantErr: ErrConfigUnmarshal,
		},
		{
			name:    "bad mode",
			path:    func(t *testing.T) string { return writeConfig(t, "relay.yaml", "capture:\n  mode: serial\n") },
			wantErr: ErrConfigValidation,
		},
		{
			name: "kafka without brokers",
			path: func(t *testing.T) string {
				return writeConfig(t, "relay.yaml", "capture:\n  mode: cdp\n  path: x\nkafka:\n  enabled: true\n")
			},
			wantErr: ErrConfigValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.path(t)).Load()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{Capture: CaptureConfig{Mode: ModeCDP, Path: "x", MaxFrame: 1 << 20}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "cdp", mutate: func(*Config) {}},
		{name: "websocket without url", mutate: func(c *Config) { c.Capture.Mode = ModeWebSocket }, wantErr: true},
		{name: "tcp without listen", mutate: func(c *Config) { c.Capture.Mode = ModeTCP }, wantErr: true},
		{name: "cdp without path", mutate: func(c *Config) { c.Capture.Path = "" }, wantErr: true},
		{name: "tiny frames", mutate: func(c *Config) { c.Capture.MaxFrame = 10 }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logger.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Identity(t *testing.T) {
	cfg := Config{Bot: BotConfig{Name: "relaybot", UID: 7, Channel: "chan"}}
	id := cfg.Identity()

	assert.Equal(t, "relaybot", id.BotName)
	assert.Equal(t, uint64(7), id.BotUID)
	assert.Equal(t, "en-US", id.Locale)
	assert.Equal(t, "https://trovo.live/chat/chan", id.ServiceURL())

	cfg.Bot.Locale = "de-DE"
	cfg.Bot.ChatURL = "http://localhost/chat/"
	id = cfg.Identity()
	assert.Equal(t, "de-DE", id.Locale)
	assert.Equal(t, "http://localhost/chat/chan", id.ServiceURL())
}
