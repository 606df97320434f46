// Package config loads relay configuration from a file and TROVOCHAT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/internal/logger"
	"github.com/omochice/trovochat/internal/transport/kafka"
)

var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrConfigValidation = errors.New("config validation failed")
	ErrConfigUnmarshal  = errors.New("failed to unmarshal config")
)

// EnvPrefix prefixes every environment override, e.g. TROVOCHAT_BOT_NAME.
const EnvPrefix = "TROVOCHAT"

// Capture modes.
const (
	ModeWebSocket = "websocket"
	ModeTCP       = "tcp"
	ModeCDP       = "cdp"
)

type Config struct {
	Bot     BotConfig     `mapstructure:"bot"`
	Capture CaptureConfig `mapstructure:"capture"`
	Sinks   SinksConfig   `mapstructure:"sinks"`
	Kafka   kafka.Config  `mapstructure:"kafka"`
	Logger  logger.Config `mapstructure:"logger"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type BotConfig struct {
	Name    string `mapstructure:"name"`
	UID     uint64 `mapstructure:"uid"`
	Channel string `mapstructure:"channel"`
	Locale  string `mapstructure:"locale"`
	ChatURL string `mapstructure:"chat_url"`
}

// CaptureConfig selects where frames come from.
type CaptureConfig struct {
	Mode     string `mapstructure:"mode"`
	URL      string `mapstructure:"url"`    // websocket feed
	Origin   string `mapstructure:"origin"` // websocket handshake Origin
	Listen   string `mapstructure:"listen"` // tcp ingest address
	Path     string `mapstructure:"path"`   // cdp capture file
	MaxFrame uint32 `mapstructure:"max_frame_bytes"`
}

type SinksConfig struct {
	Stdout          bool   `mapstructure:"stdout"`
	WebSocketListen string `mapstructure:"websocket_listen"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Identity returns the chat identity described by the bot section.
func (c *Config) Identity() chat.Identity {
	id := chat.DefaultIdentity()
	id.BotName = c.Bot.Name
	id.BotUID = c.Bot.UID
	id.Channel = c.Bot.Channel
	if c.Bot.Locale != "" {
		id.Locale = c.Bot.Locale
	}
	if c.Bot.ChatURL != "" {
		id.ChatURL = c.Bot.ChatURL
	}
	return id
}

// Validate checks that the selected capture mode and enabled sinks are
// fully configured.
func (c *Config) Validate() error {
	switch c.Capture.Mode {
	case ModeWebSocket:
		if c.Capture.URL == "" {
			return errors.New("capture.url is required in websocket mode")
		}
	case ModeTCP:
		if c.Capture.Listen == "" {
			return errors.New("capture.listen is required in tcp mode")
		}
	case ModeCDP:
		if c.Capture.Path == "" {
			return errors.New("capture.path is required in cdp mode")
		}
	default:
		return fmt.Errorf("capture.mode %q must be one of %s, %s, %s", c.Capture.Mode, ModeWebSocket, ModeTCP, ModeCDP)
	}
	if c.Capture.MaxFrame < 64 {
		return fmt.Errorf("capture.max_frame_bytes %d is too small", c.Capture.MaxFrame)
	}
	if err := c.Kafka.Validate(); err != nil {
		return err
	}
	return c.Logger.Validate()
}

// Loader reads configuration through viper.
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a loader for the file at path. An empty path loads
// defaults and environment variables only.
func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{viper: v}
}

func setDefaults(v *viper.Viper) {
	kd := kafka.DefaultConfig()

	v.SetDefault("bot.name", "")
	v.SetDefault("bot.uid", 0)
	v.SetDefault("bot.channel", "")
	v.SetDefault("bot.locale", chat.DefaultLocale)
	v.SetDefault("bot.chat_url", chat.DefaultChatURL)

	v.SetDefault("capture.mode", ModeWebSocket)
	v.SetDefault("capture.url", "")
	v.SetDefault("capture.origin", "https://trovo.live")
	v.SetDefault("capture.listen", "127.0.0.1:9400")
	v.SetDefault("capture.path", "")
	v.SetDefault("capture.max_frame_bytes", 1<<20)

	v.SetDefault("sinks.stdout", true)
	v.SetDefault("sinks.websocket_listen", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", kd.Topic)
	v.SetDefault("kafka.compression", kd.Compression)
	v.SetDefault("kafka.batch_size", kd.BatchSize)
	v.SetDefault("kafka.batch_timeout", kd.BatchTimeout)
	v.SetDefault("kafka.required_acks", kd.RequiredAcks)
	v.SetDefault("kafka.async", kd.Async)
	v.SetDefault("kafka.sasl.enabled", false)
	v.SetDefault("kafka.sasl.mechanism", kd.SASL.Mechanism)
	v.SetDefault("kafka.sasl.username", "")
	v.SetDefault("kafka.sasl.password", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", logger.FormatJSON)
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("metrics.listen", "")
}

// Load reads, unmarshals and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if l.viper.ConfigFileUsed() != "" {
		if err := l.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.viper.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigUnmarshal, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the path of the loaded file, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

// Watch reloads the file whenever it changes and passes the result to fn.
// Invalid revisions are reported through fn's error.
func (l *Loader) Watch(fn func(cfg *Config, err error)) {
	l.viper.OnConfigChange(func(fsnotify.Event) {
		fn(l.Load())
	})
	l.viper.WatchConfig()
}
