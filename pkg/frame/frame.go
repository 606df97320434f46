// Package frame parses the fixed envelope wrapping captured binary chat frames.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Envelope layout, big-endian:
//
//	[0:4]   total length
//	[8:10]  opcode
//	[18:22] payload length
//	tail    payload (last payload-length bytes)
const (
	HeaderLen  = 22
	OpcodeChat = 3
)

var (
	ErrEnvelopeInvalid = errors.New("frame: envelope invalid")
	ErrFrameTooLarge   = errors.New("frame: frame too large")
	ErrShortFrame      = errors.New("frame: short frame")
)

// Envelope is the decoded fixed header of a captured frame.
type Envelope struct {
	TotalLength   uint32
	Opcode        uint16
	PayloadLength uint32
}

// Limits constrains stream decode memory use.
type Limits struct {
	MaxFrameBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 1 << 20}
}

// ParseEnvelope reads the envelope fields at their fixed offsets.
func ParseEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < HeaderLen {
		return Envelope{}, fmt.Errorf("%w: %d bytes, need %d", ErrEnvelopeInvalid, len(buf), HeaderLen)
	}
	return Envelope{
		TotalLength:   binary.BigEndian.Uint32(buf[0:4]),
		Opcode:        binary.BigEndian.Uint16(buf[8:10]),
		PayloadLength: binary.BigEndian.Uint32(buf[18:22]),
	}, nil
}

// Validate checks the envelope lengths against the captured buffer size.
func (e Envelope) Validate(size int) error {
	if e.PayloadLength > e.TotalLength {
		return fmt.Errorf("%w: payload length %d exceeds total length %d", ErrEnvelopeInvalid, e.PayloadLength, e.TotalLength)
	}
	if uint64(e.PayloadLength) > uint64(size) {
		return fmt.Errorf("%w: payload length %d exceeds buffer size %d", ErrEnvelopeInvalid, e.PayloadLength, size)
	}
	return nil
}

// IsChat reports whether the envelope carries a chat payload.
func (e Envelope) IsChat() bool {
	return e.Opcode == OpcodeChat
}

// Extract returns the chat payload of buf. Frames with any other opcode
// return ok=false and no error.
func Extract(buf []byte) (payload []byte, ok bool, err error) {
	env, err := ParseEnvelope(buf)
	if err != nil {
		return nil, false, err
	}
	if !env.IsChat() {
		return nil, false, nil
	}
	if err := env.Validate(len(buf)); err != nil {
		return nil, false, err
	}
	return buf[len(buf)-int(env.PayloadLength):], true, nil
}

// Build returns a frame with a consistent envelope around payload.
func Build(opcode uint16, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.BigEndian.PutUint16(buf[8:10], opcode)
	binary.BigEndian.PutUint32(buf[18:22], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf
}

// ReadFrame reads one total-length delimited frame from a byte stream.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}

	total := binary.BigEndian.Uint32(size[:])
	if total < HeaderLen {
		return nil, fmt.Errorf("%w: total length %d below header length", ErrEnvelopeInvalid, total)
	}
	if total > limits.MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, total)
	copy(buf, size[:])
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}
	return buf, nil
}
