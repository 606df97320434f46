package protocol

import (
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// CommandPrefix marks a chat text as a bot command.
const CommandPrefix = "!"

// ParseCommand splits a command text on single spaces. The first token,
// prefix included, is the command; the rest are its arguments, empty tokens
// kept. Text without the prefix yields no command and nil args.
func ParseCommand(text string) (string, []string) {
	if !strings.HasPrefix(text, CommandPrefix) {
		return "", nil
	}
	tokens := strings.Split(text, " ")
	return tokens[0], tokens[1:]
}

var mentionJSON = sonic.Config{UseInt64: true}.Froze()

// ParseMentions decodes the JSON array carried in the "at" detail into one
// mention per element, in array order. A uid may be an integer or a string
// holding one; fields of any other shape, and elements that are not objects,
// leave the zero value. Values that are not a JSON array yield no mentions.
func ParseMentions(raw string) []Mention {
	var entries []any
	if err := mentionJSON.UnmarshalFromString(raw, &entries); err != nil {
		return nil
	}
	mentions := make([]Mention, 0, len(entries))
	for _, e := range entries {
		var m Mention
		if obj, ok := e.(map[string]any); ok {
			m.ID = mentionUID(obj["uid"])
			m.Name, _ = obj["name"].(string)
		}
		mentions = append(mentions, m)
	}
	return mentions
}

func mentionUID(v any) int64 {
	switch uid := v.(type) {
	case int64:
		return uid
	case string:
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			return 0
		}
		return id
	default:
		return 0
	}
}
