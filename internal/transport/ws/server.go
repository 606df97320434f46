package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/omochice/trovochat/internal/chat"
)

const (
	outgoingBuffer = 64
	writeTimeout   = 5 * time.Second
)

// Server accepts WebSocket subscribers and registers them on a Hub.
type Server struct {
	address  string
	listener net.Listener
	hub      *chat.Hub
	server   *http.Server
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Hub.
func New(address string, hub *chat.Hub, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address: address,
		hub:     hub,
		log:     log.With().Str("component", "websocket").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("WebSocket server started")
	return nil
}

// Serve serves subscribers until Stop is called.
func (s *Server) Serve() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the WebSocket server and disconnects subscribers.
func (s *Server) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.server.Shutdown(context.Background())
	})
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to accept WebSocket connection")
		return
	}

	client := &chat.Client{
		Conn:     NewConn(wsConn, r.RemoteAddr),
		Outgoing: make(chan []byte, outgoingBuffer),
	}

	s.wg.Add(2)
	go s.handleClient(client)
	go s.writeLoop(client)
}

func (s *Server) handleClient(client *chat.Client) {
	defer s.wg.Done()
	defer close(client.Outgoing)
	s.hub.HandleClient(s.ctx, client)
}

func (s *Server) writeLoop(client *chat.Client) {
	defer s.wg.Done()
	defer client.Conn.Close()
	for data := range client.Outgoing {
		if err := client.Conn.Write(s.ctx, data); err != nil {
			s.log.Warn().Err(err).Str("remote", client.Conn.RemoteAddr()).Msg("failed to write to subscriber")
			client.Conn.Close()
			// drain until the read side unregisters the client
			for range client.Outgoing {
			}
			return
		}
	}
}
