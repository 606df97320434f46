package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

var ErrProducerClosed = errors.New("kafka: producer is closed")

// Producer publishes raw messages.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, value []byte) error
	io.Closer
}

// KafkaProducer is a Producer backed by a kafka.Writer.
type KafkaProducer struct {
	writer       *kafka.Writer
	defaultTopic string
	log          zerolog.Logger
	onFailure    func(failed int, err error)
	mu           sync.RWMutex
	closed       bool
}

// ProducerOption configures a KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithFailureHandler is called with the number of messages an asynchronous
// batch failed to deliver.
func WithFailureHandler(fn func(failed int, err error)) ProducerOption {
	return func(p *KafkaProducer) {
		p.onFailure = fn
	}
}

// NewProducer creates a KafkaProducer from cfg. No connection is made until
// the first publish. With cfg.Async, Publish only queues the message and
// delivery failures go to the log and the failure handler.
func NewProducer(cfg Config, log zerolog.Logger, opts ...ProducerOption) (*KafkaProducer, error) {
	transport := &kafka.Transport{}
	if cfg.SASL.Enabled {
		mechanism, err := cfg.SASL.mechanism()
		if err != nil {
			return nil, err
		}
		transport.SASL = mechanism
	}

	p := &KafkaProducer{
		defaultTopic: cfg.Topic,
		log:          log.With().Str("component", "kafka").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		Transport:    transport,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  cfg.CompressionCodec(),
		Async:        cfg.Async,
	}
	if cfg.Async {
		p.writer.Completion = p.complete
	}
	return p, nil
}

func (p *KafkaProducer) complete(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.log.Error().Err(err).Int("messages", len(messages)).Msg("failed to deliver batch")
	if p.onFailure != nil {
		p.onFailure(len(messages), err)
	}
}

// Publish writes one message. An empty topic selects the configured topic.
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	if topic == "" {
		topic = p.defaultTopic
	}
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.writer.Close(); err != nil {
		p.log.Error().Err(err).Msg("error closing Kafka writer")
		return fmt.Errorf("failed to close writer: %w", err)
	}
	p.log.Info().Msg("producer closed")
	return nil
}

func (s SASLConfig) mechanism() (sasl.Mechanism, error) {
	switch s.Mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: s.Username, Password: s.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, s.Username, s.Password)
	case "SCRAM-SHA-512", "":
		return scram.Mechanism(scram.SHA512, s.Username, s.Password)
	default:
		return nil, fmt.Errorf("kafka SASL mechanism %q is not supported", s.Mechanism)
	}
}
