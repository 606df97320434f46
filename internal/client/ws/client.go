// Package ws subscribes to the activities a relay fans out over WebSocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/omochice/trovochat/internal/chat"
)

var ErrAlreadyConnected = errors.New("already connected to relay")

// Client receives activities from a relay WebSocket sink.
type Client struct {
	address    string
	conn       *websocket.Conn
	activities chan *chat.Activity
	log        zerolog.Logger
	mu         sync.RWMutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Client for address, e.g. ws://127.0.0.1:9401.
func New(address string, log zerolog.Logger) *Client {
	return &Client{
		address: address,
		log:     log.With().Str("component", "subscriber").Logger(),
	}
}

// Connect dials the relay and starts receiving. A client can reconnect after
// Disconnect; each connection gets a fresh Activities channel.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	conn, _, err := websocket.Dial(ctx, c.address, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	rctx, cancel := context.WithCancel(context.Background())
	activities := make(chan *chat.Activity, 64)
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.activities = activities
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receive(rctx, conn, activities)
	return nil
}

// Disconnect closes the connection and waits for the receive loop.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
	cancel()
	c.wg.Wait()
}

// IsConnected reports whether the client holds a connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Activities returns the receive channel of the current connection. It is
// closed when that connection ends, and nil before the first Connect.
func (c *Client) Activities() <-chan *chat.Activity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activities
}

func (c *Client) receive(ctx context.Context, conn *websocket.Conn, activities chan<- *chat.Activity) {
	defer c.wg.Done()
	defer close(activities)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}

		var a chat.Activity
		if err := sonic.Unmarshal(data, &a); err != nil {
			c.log.Warn().Err(err).Msg("failed to decode activity")
			continue
		}

		select {
		case activities <- &a:
		case <-ctx.Done():
			return
		}
	}
}
