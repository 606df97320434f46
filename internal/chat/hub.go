package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

// Client is a subscriber receiving encoded activities on Outgoing.
type Client struct {
	Conn     Conn
	Outgoing chan []byte
}

// Hub tracks subscribers and broadcasts activities to them.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	log     zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Emit encodes a once and queues it for every client. Clients whose queue is
// full miss the activity.
func (h *Hub) Emit(_ context.Context, a *Activity) error {
	data, err := sonic.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Outgoing <- data:
		default:
			h.log.Warn().Str("remote", client.Conn.RemoteAddr()).Msg("subscriber queue full, dropping activity")
		}
	}
	return nil
}

// HandleClient registers client and reads from it until the connection
// fails, then unregisters it. Subscribers are not expected to send anything;
// reads only detect disconnects.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	h.Register(client)
	defer h.Unregister(client)

	h.log.Debug().Str("remote", client.Conn.RemoteAddr()).Msg("subscriber connected")
	for {
		if _, err := client.Conn.Read(ctx); err != nil {
			h.log.Debug().Err(err).Str("remote", client.Conn.RemoteAddr()).Msg("subscriber disconnected")
			return
		}
	}
}
