package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/trovochat/internal/transport/tcp"
	"github.com/omochice/trovochat/pkg/frame"
)

// TCPIngest accepts TCP connections carrying back-to-back captured frames and
// yields them as binary frames. Frames of one connection keep their order.
type TCPIngest struct {
	srv    *tcp.Server
	frames chan Frame
	done   chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

// ListenTCP starts accepting frame streams on address.
func ListenTCP(address string, limits frame.Limits, log zerolog.Logger) (*TCPIngest, error) {
	t := &TCPIngest{
		frames: make(chan Frame),
		done:   make(chan struct{}),
		log:    log.With().Str("component", "capture").Logger(),
	}
	t.srv = tcp.New(address, limits, t.handle, log)
	if err := t.srv.Listen(); err != nil {
		return nil, err
	}
	go t.srv.Serve()
	return t, nil
}

// Addr returns the listening address.
func (t *TCPIngest) Addr() string {
	return t.srv.Addr()
}

// Next returns the next frame from any connection.
func (t *TCPIngest) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-t.done:
		return Frame{}, io.EOF
	case f := <-t.frames:
		return f, nil
	}
}

// Close stops accepting connections and ends the stream.
func (t *TCPIngest) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.srv.Stop()
	})
	return nil
}

func (t *TCPIngest) handle(ctx context.Context, conn *tcp.Conn) {
	log := t.log.With().Str("remote", conn.RemoteAddr()).Logger()
	log.Debug().Msg("frame stream connected")
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			// a broken frame leaves the stream unaligned, so the connection ends
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				log.Debug().Msg("frame stream closed")
			} else {
				log.Warn().Err(err).Msg("frame stream failed")
			}
			return
		}
		select {
		case t.frames <- Frame{Kind: KindBinary, Data: data}:
		case <-t.done:
			return
		}
	}
}
