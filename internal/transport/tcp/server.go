package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/trovochat/pkg/frame"
)

// Handler serves one accepted connection. ctx is cancelled when the server
// stops.
type Handler func(ctx context.Context, conn *Conn)

// Server accepts TCP connections and hands each to a Handler.
type Server struct {
	address  string
	listener net.Listener
	limits   frame.Limits
	handler  Handler
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates a TCP server.
func New(address string, limits frame.Limits, handler Handler, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		limits:  limits,
		handler: handler,
		log:     log.With().Str("component", "tcp").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("TCP server started")
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.log.Warn().Err(err).Msg("failed to accept TCP connection")
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(NewConn(conn, s.limits))
	}
}

// Stop closes the listener, cancels handlers and waits for them to return.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.quit)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
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

func (s *Server) handleConn(conn *Conn) {
	defer s.wg.Done()
	defer conn.Close()
	s.handler(s.ctx, conn)
}
