// Package kafka publishes decoded activities to a Kafka topic.
package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config contains parameters for connecting to Kafka.
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	Compression  string        `mapstructure:"compression"` // none, gzip, snappy, lz4 or zstd
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"` // -1, 0 or 1
	Async        bool          `mapstructure:"async"`         // failures are reported after the fact
	SASL         SASLConfig    `mapstructure:"sasl"`
}

// SASLConfig describes SASL authentication settings.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"` // PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// DefaultConfig returns a disabled configuration with producer defaults.
func DefaultConfig() Config {
	return Config{
		Topic:        "trovo.activities",
		Compression:  "snappy",
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: 1,
		Async:        true,
		SASL:         SASLConfig{Mechanism: "SCRAM-SHA-512"},
	}
}

// Validate checks an enabled configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	switch c.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("kafka compression %q is not supported", c.Compression)
	}
	switch c.RequiredAcks {
	case -1, 0, 1:
	default:
		return fmt.Errorf("kafka required_acks %d must be -1, 0 or 1", c.RequiredAcks)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("kafka batch_size %d must be positive", c.BatchSize)
	}
	if c.SASL.Enabled {
		if _, err := c.SASL.mechanism(); err != nil {
			return err
		}
	}
	return nil
}

// CompressionCodec converts the configured compression to kafka.Compression.
func (c Config) CompressionCodec() kafka.Compression {
	switch c.Compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}
