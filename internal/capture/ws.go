package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WSSource reads frames from a WebSocket capture feed.
type WSSource struct {
	conn net.Conn
	rw   io.ReadWriter
	mu   sync.Mutex
}

type bufferedConn struct {
	io.Reader
	io.Writer
}

// DialWS connects to the feed at url. header is sent with the handshake and
// may be nil.
func DialWS(ctx context.Context, url string, header http.Header) (*WSSource, error) {
	d := ws.Dialer{}
	if header != nil {
		d.Header = ws.HandshakeHeaderHTTP(header)
	}
	conn, br, _, err := d.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial capture feed: %w", err)
	}
	return newWSSource(conn, br), nil
}

func newWSSource(conn net.Conn, br *bufio.Reader) *WSSource {
	s := &WSSource{conn: conn, rw: conn}
	// frames sent right after the handshake may already sit in br
	if br != nil {
		s.rw = bufferedConn{Reader: br, Writer: conn}
	}
	return s
}

// Next reads the next data frame. Control frames are handled internally; a
// close frame ends the stream with io.EOF.
func (s *WSSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	_ = s.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	data, op, err := wsutil.ReadServerData(s.rw)
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		var closed wsutil.ClosedError
		if errors.As(err, &closed) || errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("failed to read capture frame: %w", err)
	}

	kind := KindBinary
	if op == ws.OpText {
		kind = KindText
	}
	return Frame{Kind: kind, Data: data}, nil
}

// Close sends a close frame and closes the connection.
func (s *WSSource) Close() error {
	_ = wsutil.WriteClientMessage(s.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	return s.conn.Close()
}
