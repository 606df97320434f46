// Package wire provides a cursor-based reader for the tag/varint/length-delimited
// encoding used inside chat frame payloads.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMalformedVarint  = errors.New("wire: malformed varint")
	ErrTruncatedBuffer  = errors.New("wire: truncated buffer")
	ErrMalformedField   = errors.New("wire: malformed field")
	ErrWireType         = errors.New("wire: unexpected wire type")
	ErrFieldNotConsumed = errors.New("wire: field not consumed")
)

// FieldFunc handles one field of a message. It must consume exactly the bytes
// belonging to the field.
type FieldFunc func(num protowire.Number, typ protowire.Type, r *Reader) error

// Reader is a cursor over a byte buffer. Reads never pass the active limit,
// which ReadFields narrows to the end offset of the message being decoded.
type Reader struct {
	buf   []byte
	pos   int
	limit int
}

// NewReader creates a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf, limit: len(buf)}
}

// Pos returns the cursor position.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the number of unread bytes before the active limit.
func (r *Reader) Len() int {
	return r.limit - r.pos
}

// ReadVarint decodes a base-128 varint at the cursor.
func (r *Reader) ReadVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.buf[r.pos:r.limit])
	if n < 0 {
		return 0, fmt.Errorf("%w at offset %d", ErrMalformedVarint, r.pos)
	}
	r.pos += n
	return v, nil
}

// ReadString decodes n bytes at the cursor as UTF-8. Invalid sequences are
// replaced with U+FFFD.
func (r *Reader) ReadString(n int) (string, error) {
	if n < 0 || n > r.Len() {
		return "", fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedBuffer, n, r.pos, r.Len())
	}
	s := strings.ToValidUTF8(string(r.buf[r.pos:r.pos+n]), "\uFFFD")
	r.pos += n
	return s, nil
}

// ReadLengthString reads a length varint followed by that many bytes of UTF-8.
func (r *Reader) ReadLengthString() (string, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()) {
		return "", fmt.Errorf("%w: string length %d at offset %d, have %d", ErrTruncatedBuffer, n, r.pos, r.Len())
	}
	return r.ReadString(int(n))
}

// ReadLength reads the length prefix of a length-delimited field and returns
// the absolute end offset of its value.
func (r *Reader) ReadLength() (int, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()) {
		return 0, fmt.Errorf("%w: length %d at offset %d exceeds %d", ErrTruncatedBuffer, n, r.pos, r.Len())
	}
	return r.pos + int(n), nil
}

// ReadFields reads fields until the cursor reaches end, calling fn for each.
// The active limit is narrowed to end for the duration of the call.
func (r *Reader) ReadFields(end int, fn FieldFunc) error {
	if end < r.pos || end > r.limit {
		return fmt.Errorf("%w: end %d outside [%d, %d]", ErrTruncatedBuffer, end, r.pos, r.limit)
	}
	saved := r.limit
	r.limit = end
	defer func() { r.limit = saved }()

	for r.pos < end {
		start := r.pos
		tag, err := r.ReadVarint()
		if err != nil {
			return err
		}
		num, typ := protowire.DecodeTag(tag)
		before := r.pos
		if err := fn(num, typ, r); err != nil {
			return err
		}
		if r.pos == before {
			return fmt.Errorf("%w: field %d at offset %d", ErrFieldNotConsumed, num, start)
		}
	}
	return nil
}

// Skip consumes one field value of the given wire type.
func (r *Reader) Skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, r.buf[r.pos:r.limit])
	if n < 0 {
		return fmt.Errorf("%w: field %d type %d at offset %d: %v", ErrMalformedField, num, typ, r.pos, protowire.ParseError(n))
	}
	r.pos += n
	return nil
}

// Expect reports ErrWireType when a recognised field carries the wrong wire type.
func Expect(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: field %d got %d want %d", ErrWireType, num, got, want)
	}
	return nil
}
