package protocol

import (
	"fmt"

	"github.com/omochice/trovochat/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

const nanosPerMilli = 1_000_000

// Outer message fields.
const (
	fieldMessageChat       protowire.Number = 3
	fieldMessageTimestamp5 protowire.Number = 5
	fieldMessageTimestamp6 protowire.Number = 6
)

// Chat submessage fields.
const (
	fieldChatSenderID   protowire.Number = 1
	fieldChatSenderName protowire.Number = 3
	fieldChatText       protowire.Number = 5
	fieldChatTimestamp  protowire.Number = 6
	fieldChatValue      protowire.Number = 7
	fieldChatSubLevel   protowire.Number = 10
	fieldChatAvatar     protowire.Number = 11
	fieldChatUserName   protowire.Number = 12
	fieldChatRole       protowire.Number = 13
	fieldChatDecoration protowire.Number = 14
	fieldChatDetail     protowire.Number = 20
)

const fieldRoleName protowire.Number = 2

const fieldDecorationName protowire.Number = 1

// Detail entry fields.
const (
	fieldDetailKey   protowire.Number = 1
	fieldDetailValue protowire.Number = 2
)

// Unrecognised fields in every table are skipped by wire type.

func decodeMessage(r *wire.Reader, end int) (*Message, error) {
	msg := &Message{}
	err := r.ReadFields(end, func(num protowire.Number, typ protowire.Type, r *wire.Reader) error {
		switch num {
		case fieldMessageChat:
			end, err := readSubmessage(r, num, typ)
			if err != nil {
				return err
			}
			chat, err := decodeChat(r, end)
			if err != nil {
				return err
			}
			msg.Chat = chat
		case fieldMessageTimestamp5:
			ms, err := readTimestamp(r, num, typ)
			if err != nil {
				return err
			}
			msg.Field5TimestampMS = ms
		case fieldMessageTimestamp6:
			ms, err := readTimestamp(r, num, typ)
			if err != nil {
				return err
			}
			msg.Field6TimestampMS = ms
		default:
			return r.Skip(num, typ)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeChat(r *wire.Reader, end int) (*Chat, error) {
	c := newChat()
	err := r.ReadFields(end, func(num protowire.Number, typ protowire.Type, r *wire.Reader) error {
		var err error
		switch num {
		case fieldChatSenderID:
			c.SenderID, err = readVarint(r, num, typ)
		case fieldChatSenderName:
			c.SenderName, err = readString(r, num, typ)
			c.Channel.DisplayName = c.SenderName
		case fieldChatText:
			c.Text, err = readString(r, num, typ)
		case fieldChatTimestamp:
			c.TimestampMS, err = readTimestamp(r, num, typ)
		case fieldChatValue:
			c.Value, err = readVarint(r, num, typ)
		case fieldChatSubLevel:
			c.Channel.SubLevel, err = readString(r, num, typ)
		case fieldChatAvatar:
			c.Channel.Avatar, err = readString(r, num, typ)
		case fieldChatUserName:
			c.Channel.UserName, err = readString(r, num, typ)
		case fieldChatRole:
			var role string
			if role, err = decodeRole(r, num, typ); err == nil {
				c.Channel.Roles = append(c.Channel.Roles, role)
			}
		case fieldChatDecoration:
			var name string
			if name, err = decodeDecoration(r, num, typ); err == nil {
				c.Channel.Decorations = append(c.Channel.Decorations, name)
			}
		case fieldChatDetail:
			var key, value string
			if key, value, err = decodeDetail(r, num, typ); err == nil {
				c.addDetail(key, value)
			}
		default:
			err = r.Skip(num, typ)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	c.finalize()
	return c, nil
}

func decodeRole(r *wire.Reader, num protowire.Number, typ protowire.Type) (string, error) {
	end, err := readSubmessage(r, num, typ)
	if err != nil {
		return "", err
	}
	var role string
	err = r.ReadFields(end, func(num protowire.Number, typ protowire.Type, r *wire.Reader) error {
		switch num {
		case fieldRoleName:
			var err error
			role, err = readString(r, num, typ)
			return err
		default:
			return r.Skip(num, typ)
		}
	})
	if err != nil {
		return "", fmt.Errorf("role: %w", err)
	}
	return role, nil
}

func decodeDecoration(r *wire.Reader, num protowire.Number, typ protowire.Type) (string, error) {
	end, err := readSubmessage(r, num, typ)
	if err != nil {
		return "", err
	}
	var name string
	err = r.ReadFields(end, func(num protowire.Number, typ protowire.Type, r *wire.Reader) error {
		switch num {
		case fieldDecorationName:
			var err error
			name, err = readString(r, num, typ)
			return err
		default:
			return r.Skip(num, typ)
		}
	})
	if err != nil {
		return "", fmt.Errorf("decoration: %w", err)
	}
	return name, nil
}

func decodeDetail(r *wire.Reader, num protowire.Number, typ protowire.Type) (key, value string, err error) {
	end, err := readSubmessage(r, num, typ)
	if err != nil {
		return "", "", err
	}
	err = r.ReadFields(end, func(num protowire.Number, typ protowire.Type, r *wire.Reader) error {
		var err error
		switch num {
		case fieldDetailKey:
			key, err = readString(r, num, typ)
		case fieldDetailValue:
			value, err = readString(r, num, typ)
		default:
			err = r.Skip(num, typ)
		}
		return err
	})
	if err != nil {
		return "", "", fmt.Errorf("detail: %w", err)
	}
	return key, value, nil
}

// addDetail stores a detail entry; later duplicate keys overwrite.
func (c *Chat) addDetail(key, value string) {
	if key == DetailMentions && value != "" {
		c.Mentions = append(c.Mentions, ParseMentions(value)...)
	}
	c.Channel.Details[key] = value
}

// finalize derives the command or the event kind once all fields are read.
func (c *Chat) finalize() {
	if c.IsEvent() {
		c.Channel.EventKind = Classify(c.Value)
		c.Channel.Command = ""
		c.Channel.Args = []string{}
		return
	}
	cmd, args := ParseCommand(c.Text)
	if args == nil {
		args = []string{}
	}
	c.Channel.Command = cmd
	c.Channel.Args = args
}

func readVarint(r *wire.Reader, num protowire.Number, typ protowire.Type) (uint64, error) {
	if err := wire.Expect(num, typ, protowire.VarintType); err != nil {
		return 0, err
	}
	return r.ReadVarint()
}

func readTimestamp(r *wire.Reader, num protowire.Number, typ protowire.Type) (int64, error) {
	ns, err := readVarint(r, num, typ)
	if err != nil {
		return 0, err
	}
	return int64(ns / nanosPerMilli), nil
}

func readString(r *wire.Reader, num protowire.Number, typ protowire.Type) (string, error) {
	if err := wire.Expect(num, typ, protowire.BytesType); err != nil {
		return "", err
	}
	return r.ReadLengthString()
}

func readSubmessage(r *wire.Reader, num protowire.Number, typ protowire.Type) (int, error) {
	if err := wire.Expect(num, typ, protowire.BytesType); err != nil {
		return 0, err
	}
	return r.ReadLength()
}
