// Package tcp feeds captured frames into a relay's TCP ingest.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/pkg/frame"
)

var ErrNotConnected = errors.New("not connected to ingest")

// Client writes envelope-delimited frames to a TCP ingest.
type Client struct {
	address string
	conn    net.Conn
	mu      sync.Mutex
}

// New creates a Client for address.
func New(address string) *Client {
	return &Client{address: address}
}

// Connect dials the ingest.
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to ingest: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected reports whether the client holds a connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one frame. The frame must carry a consistent envelope; the
// ingest relies on the total length to find the next frame.
func (c *Client) Send(data []byte) error {
	env, err := frame.ParseEnvelope(data)
	if err != nil {
		return err
	}
	if int(env.TotalLength) != len(data) {
		return fmt.Errorf("%w: total length %d, frame has %d bytes", frame.ErrEnvelopeInvalid, env.TotalLength, len(data))
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// Feed sends every binary frame of src until it is exhausted. Text frames
// and frames whose envelope cannot delimit them are counted as skipped.
func (c *Client) Feed(ctx context.Context, src capture.Source) (sent, skipped int, err error) {
	for {
		f, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sent, skipped, nil
			}
			if errors.Is(err, capture.ErrMalformedLine) {
				skipped++
				continue
			}
			return sent, skipped, err
		}
		if f.Kind != capture.KindBinary {
			skipped++
			continue
		}
		if err := c.Send(f.Data); err != nil {
			if errors.Is(err, frame.ErrEnvelopeInvalid) {
				skipped++
				continue
			}
			return sent, skipped, err
		}
		sent++
	}
}
