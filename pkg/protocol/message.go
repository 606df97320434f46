// Package protocol decodes chat frame payloads into typed chat messages.
package protocol

import (
	"errors"
	"fmt"
	"sort"

	"github.com/omochice/trovochat/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// Detail keys with meaning beyond the detail map itself.
const (
	DetailMentions = "at"
	DetailHistory  = "__history__"
)

var ErrNegativeTimestamp = errors.New("protocol: negative timestamp")

// Message is the outer payload message. Chat is nil when the payload carries
// no chat submessage.
type Message struct {
	Chat              *Chat `json:"chat"`
	Field5TimestampMS int64 `json:"field5Timestamp"`
	Field6TimestampMS int64 `json:"field6Timestamp"`
}

// Chat is one decoded chat message.
type Chat struct {
	SenderID    uint64      `json:"senderId"`
	SenderName  string      `json:"senderName"`
	Text        string      `json:"text"`
	Value       uint64      `json:"value"`
	TimestampMS int64       `json:"timestamp"`
	Mentions    []Mention   `json:"mentions"`
	Channel     ChannelData `json:"channelData"`
}

// ChannelData carries the channel-scoped metadata of a chat message.
type ChannelData struct {
	DisplayName string            `json:"displayName"`
	UserName    string            `json:"userName"`
	SubLevel    string            `json:"subLevel"`
	Avatar      string            `json:"avatar"`
	Roles       []string          `json:"roles"`
	Decorations []string          `json:"decoration"`
	Details     map[string]string `json:"details"`
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	EventKind   string            `json:"botkitEventType"`
}

// Mention is a user referenced by a chat message.
type Mention struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newChat() *Chat {
	return &Chat{
		Mentions: []Mention{},
		Channel: ChannelData{
			Roles:       []string{},
			Decorations: []string{},
			Details:     map[string]string{},
			Args:        []string{},
		},
	}
}

// IsEvent reports whether the chat carries a platform event code.
func (c *Chat) IsEvent() bool {
	return c.Value != 0
}

// IsHistory reports whether the message is a replay of chat history.
func (d ChannelData) IsHistory() bool {
	return d.Details[DetailHistory] != ""
}

// Decode decodes a frame payload.
func Decode(payload []byte) (*Message, error) {
	r := wire.NewReader(payload)
	msg, err := decodeMessage(r, len(payload))
	if err != nil {
		return nil, fmt.Errorf("protocol: decode message: %w", err)
	}
	return msg, nil
}

// Decode decodes bytes into the message.
func (m *Message) Decode(data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	*m = *msg
	return nil
}

// Encode encodes the message into payload bytes. Derived fields (mentions,
// command, args, event kind) are not encoded; they are rebuilt on decode.
func (m *Message) Encode() ([]byte, error) {
	var b []byte
	if m.Chat != nil {
		chat, err := m.Chat.encode()
		if err != nil {
			return nil, fmt.Errorf("protocol: encode chat: %w", err)
		}
		b = protowire.AppendTag(b, fieldMessageChat, protowire.BytesType)
		b = protowire.AppendBytes(b, chat)
	}
	var err error
	if b, err = appendTimestamp(b, fieldMessageTimestamp5, m.Field5TimestampMS); err != nil {
		return nil, fmt.Errorf("protocol: encode message: %w", err)
	}
	if b, err = appendTimestamp(b, fieldMessageTimestamp6, m.Field6TimestampMS); err != nil {
		return nil, fmt.Errorf("protocol: encode message: %w", err)
	}
	return b, nil
}

func (c *Chat) encode() ([]byte, error) {
	var b []byte
	b = appendVarint(b, fieldChatSenderID, c.SenderID)
	b = appendString(b, fieldChatSenderName, c.SenderName)
	b = appendString(b, fieldChatText, c.Text)
	b, err := appendTimestamp(b, fieldChatTimestamp, c.TimestampMS)
	if err != nil {
		return nil, err
	}
	b = appendVarint(b, fieldChatValue, c.Value)
	b = appendString(b, fieldChatSubLevel, c.Channel.SubLevel)
	b = appendString(b, fieldChatAvatar, c.Channel.Avatar)
	b = appendString(b, fieldChatUserName, c.Channel.UserName)
	for _, role := range c.Channel.Roles {
		b = protowire.AppendTag(b, fieldChatRole, protowire.BytesType)
		b = protowire.AppendBytes(b, appendString(nil, fieldRoleName, role))
	}
	for _, name := range c.Channel.Decorations {
		b = protowire.AppendTag(b, fieldChatDecoration, protowire.BytesType)
		b = protowire.AppendBytes(b, appendString(nil, fieldDecorationName, name))
	}

	keys := make([]string, 0, len(c.Channel.Details))
	for k := range c.Channel.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := appendString(nil, fieldDetailKey, k)
		entry = appendString(entry, fieldDetailValue, c.Channel.Details[k])
		b = protowire.AppendTag(b, fieldChatDetail, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendTimestamp(b []byte, num protowire.Number, ms int64) ([]byte, error) {
	if ms < 0 {
		return nil, fmt.Errorf("%w: field %d", ErrNegativeTimestamp, num)
	}
	return appendVarint(b, num, uint64(ms)*nanosPerMilli), nil
}
