// Package chat turns decoded chat messages into bot activities and delivers
// them to sinks and subscribers.
package chat

import "context"

// Conn abstracts a subscriber connection.
type Conn interface {
	// Read reads a single message frame.
	// Returns io.EOF when connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single message frame.
	Write(ctx context.Context, data []byte) error

	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
