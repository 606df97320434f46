// Package logger builds the zerolog logger shared by all components.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config describes log level, format and destination.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout, stderr or a file path
	TimeFormat string `mapstructure:"time_format"`
}

// Validate reports unsupported settings.
func (c Config) Validate() error {
	c = sanitize(c)
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logger level %q: %w", c.Level, err)
	}
	if c.Format != FormatJSON && c.Format != FormatConsole {
		return fmt.Errorf("logger format %q: must be %s or %s", c.Format, FormatJSON, FormatConsole)
	}
	return nil
}

// New creates a logger from cfg and sets the global level.
func New(cfg Config) (zerolog.Logger, error) {
	cfg = sanitize(cfg)

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to open log output: %w", err)
		}
		output = file
	}
	return NewWithWriter(cfg, output)
}

// NewWithWriter creates a logger from cfg writing to w.
func NewWithWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	cfg = sanitize(cfg)
	if err := SetLevel(cfg.Level); err != nil {
		return zerolog.Nop(), err
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: cfg.TimeFormat,
		}
	}
	return zerolog.New(w).With().Timestamp().Logger(), nil
}

// SetLevel changes the global log level.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// sanitize fills empty fields with defaults.
func sanitize(cfg Config) Config {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	return cfg
}
