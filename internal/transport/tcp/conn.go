// Package tcp provides the TCP transport for self-delimiting captured frames.
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/omochice/trovochat/pkg/frame"
)

// Conn adapts net.Conn to chat.Conn, reading one envelope-delimited frame
// per Read.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	limits frame.Limits
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn, limits frame.Limits) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn), limits: limits}
}

// Read implements chat.Conn.
// Returns the next complete frame, envelope included.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	data, err := frame.ReadFrame(c.reader, c.limits)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return data, err
}

// Write implements chat.Conn.
func (c *Conn) Write(_ context.Context, data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
