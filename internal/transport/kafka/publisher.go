package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/omochice/trovochat/internal/chat"
)

// Envelope wraps a published activity.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// EventPublisher is a chat.Sink publishing activities through a Producer.
type EventPublisher struct {
	producer Producer
	topic    string
	now      func() time.Time
}

// NewEventPublisher creates an EventPublisher writing to topic.
func NewEventPublisher(p Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: p, topic: topic, now: time.Now}
}

// EventType names the envelope type of a: "trovo.message" for chat and
// "trovo.<kind>" for platform events.
func EventType(a *chat.Activity) string {
	if a.Type == chat.TypeEvent && a.ChannelData.EventKind != "" {
		return "trovo." + a.ChannelData.EventKind
	}
	return "trovo." + chat.TypeMessage
}

// Emit implements chat.Sink. Messages are keyed by channel so one channel
// stays on one partition.
func (p *EventPublisher) Emit(ctx context.Context, a *chat.Activity) error {
	payload, err := sonic.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	envelope := Envelope{
		EventID:    uuid.NewString(),
		EventType:  EventType(a),
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	data, err := sonic.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return p.producer.Publish(ctx, p.topic, a.ChannelID, data)
}

// Close closes the underlying producer.
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
