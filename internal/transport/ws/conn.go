// Package ws serves decoded activities to WebSocket subscribers.
package ws

import (
	"context"
	"time"

	"nhooyr.io/websocket"
)

// Subscribers only listen; anything larger than this from them ends the
// connection.
const subscriberReadLimit = 4 << 10

// Conn is one subscriber connection as seen by chat.Hub.
type Conn struct {
	ws           *websocket.Conn
	addr         string
	writeTimeout time.Duration
}

// NewConn wraps an accepted connection from addr.
func NewConn(c *websocket.Conn, addr string) *Conn {
	if c != nil {
		c.SetReadLimit(subscriberReadLimit)
	}
	return &Conn{ws: c, addr: addr, writeTimeout: writeTimeout}
}

// Read blocks until the subscriber sends a message or goes away. The hub
// only uses it to notice disconnects.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

// Write sends one JSON activity as a text message.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

func (c *Conn) RemoteAddr() string {
	return c.addr
}
