package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"
)

// Sink receives built activities.
type Sink interface {
	Emit(ctx context.Context, a *Activity) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a *Activity) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, a *Activity) error {
	return f(ctx, a)
}

// MultiSink emits to every sink in order and joins their errors.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, a *Activity) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriterSink writes each activity as one JSON line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Emit implements Sink.
func (s *WriterSink) Emit(_ context.Context, a *Activity) error {
	data, err := sonic.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write activity: %w", err)
	}
	return nil
}
