// Package capture reads raw WebSocket frames from a live feed, a TCP frame
// stream or a recorded DevTools capture.
package capture

import "context"

// Kind is the WebSocket payload kind of a captured frame.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one captured WebSocket frame.
type Frame struct {
	Kind Kind
	Data []byte
}

// Source yields captured frames in arrival order. Next returns io.EOF once
// the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
