package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
)

// MethodFrameReceived is the DevTools event carrying received WebSocket frames.
const MethodFrameReceived = "Network.webSocketFrameReceived"

const cdpOpcodeText = 1

const maxLineBytes = 16 << 20

var ErrMalformedLine = errors.New("capture: malformed line")

type cdpResponse struct {
	Opcode      int    `json:"opcode"`
	Mask        bool   `json:"mask"`
	PayloadData string `json:"payloadData"`
}

type cdpParams struct {
	RequestID string       `json:"requestId,omitempty"`
	Timestamp float64      `json:"timestamp,omitempty"`
	Response  *cdpResponse `json:"response,omitempty"`
}

// cdpLine is either a full {method, params} event or bare params.
type cdpLine struct {
	Method string     `json:"method,omitempty"`
	Params *cdpParams `json:"params,omitempty"`
	cdpParams
}

// CDPSource replays JSON lines of DevTools frame-received events.
type CDPSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewCDPSource reads events from r.
func NewCDPSource(r io.Reader) *CDPSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	s := &CDPSource{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenCDP opens a capture file.
func OpenCDP(path string) (*CDPSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	return NewCDPSource(f), nil
}

// Next returns the frame of the next frame-received event. Blank lines and
// events with other methods are skipped.
func (s *CDPSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("failed to read capture: %w", err)
			}
			return Frame{}, io.EOF
		}
		s.line++

		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		f, ok, err := parseCDPLine(raw)
		if err != nil {
			return Frame{}, fmt.Errorf("%w %d: %v", ErrMalformedLine, s.line, err)
		}
		if ok {
			return f, nil
		}
	}
}

// Line returns the number of lines consumed.
func (s *CDPSource) Line() int {
	return s.line
}

// Close closes the underlying reader when it is closable.
func (s *CDPSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func parseCDPLine(raw []byte) (Frame, bool, error) {
	var line cdpLine
	if err := sonic.Unmarshal(raw, &line); err != nil {
		return Frame{}, false, err
	}

	resp := line.Response
	if line.Method != "" {
		if line.Method != MethodFrameReceived || line.Params == nil {
			return Frame{}, false, nil
		}
		resp = line.Params.Response
	}
	if resp == nil {
		return Frame{}, false, nil
	}

	if resp.Opcode == cdpOpcodeText {
		return Frame{Kind: KindText, Data: []byte(resp.PayloadData)}, true, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.PayloadData)
	if err != nil {
		return Frame{}, false, fmt.Errorf("payload is not base64: %w", err)
	}
	return Frame{Kind: KindBinary, Data: data}, true, nil
}

// EncodeCDPLine renders a frame as a frame-received event line.
func EncodeCDPLine(f Frame) ([]byte, error) {
	resp := cdpResponse{Opcode: 2, PayloadData: base64.StdEncoding.EncodeToString(f.Data)}
	if f.Kind == KindText {
		resp = cdpResponse{Opcode: cdpOpcodeText, PayloadData: string(f.Data)}
	}
	return sonic.Marshal(cdpLine{Method: MethodFrameReceived, Params: &cdpParams{Response: &resp}})
}
