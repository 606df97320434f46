package chat

import "github.com/omochice/trovochat/pkg/protocol"

// Activity types.
const (
	TypeMessage = "message"
	TypeEvent   = "event"
)

// Account identifies a chat participant.
type Account struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Conversation identifies the conversation an activity belongs to.
type Conversation struct {
	ID string `json:"id"`
}

// Activity is a decoded chat message addressed to the bot.
type Activity struct {
	Type         string               `json:"type"`
	ID           string               `json:"id"`
	ChannelID    string               `json:"channelId"`
	Conversation Conversation         `json:"conversation"`
	From         Account              `json:"from"`
	Recipient    Account              `json:"recipient"`
	Text         string               `json:"text"`
	Value        uint64               `json:"value"`
	Entities     []protocol.Mention   `json:"entities"`
	Timestamp    int64                `json:"timestamp"`
	Locale       string               `json:"locale"`
	ServiceURL   string               `json:"serviceUrl"`
	ChannelData  protocol.ChannelData `json:"channelData"`
}

// IsCommand reports whether the activity carries a bot command.
func (a *Activity) IsCommand() bool {
	return a.ChannelData.Command != ""
}
