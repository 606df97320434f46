package chat_test

import (
	"context"
	"errors"
	"io"

	"github.com/omochice/trovochat/internal/chat"
)

// subscriber is an in-memory chat.Conn. Read returns whatever is pushed to
// inbox; closing inbox ends the connection.
type subscriber struct {
	inbox chan []byte
	addr  string
}

func newSubscriber(addr string) *subscriber {
	return &subscriber{inbox: make(chan []byte, 4), addr: addr}
}

func (s *subscriber) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-s.inbox:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

// Write is never called by the hub; activities go through Client.Outgoing.
func (s *subscriber) Write(context.Context, []byte) error {
	return errors.New("subscriber: unexpected write")
}

func (s *subscriber) Close() error { return nil }

func (s *subscriber) RemoteAddr() string { return s.addr }

var _ chat.Conn = (*subscriber)(nil)
