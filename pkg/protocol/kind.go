package protocol

// EventKind is the platform chat type code carried in the chat value field.
type EventKind uint64

const (
	KindMessage        EventKind = 0
	KindStreamer       EventKind = 1
	KindChannelManager EventKind = 2
	KindLiveManager    EventKind = 3
	KindSuperManager   EventKind = 4
	KindGift           EventKind = 5
	KindMagicChat      EventKind = 6
	KindSubscribed     EventKind = 5001
	KindSystem         EventKind = 5002
	KindFollow         EventKind = 5003
	KindWelcome        EventKind = 5004
	KindGiftedSub      EventKind = 5005
	KindHosted         EventKind = 5006
	KindRocketLaunch   EventKind = 5007
	KindRaid           EventKind = 5008
	KindNewGift        EventKind = 5009
)

// UnknownEvent names any code outside the table.
const UnknownEvent = "unknown_event"

// String returns the event name for the kind.
func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindStreamer:
		return "streamer"
	case KindChannelManager:
		return "channel_manager"
	case KindLiveManager:
		return "live_manager"
	case KindSuperManager:
		return "super_manager"
	case KindGift:
		return "gift"
	case KindMagicChat:
		return "magic_chat"
	case KindSubscribed:
		return "subscribed"
	case KindSystem:
		return "system"
	case KindFollow:
		return "follow"
	case KindWelcome:
		return "welcome"
	case KindGiftedSub:
		return "gifted_sub"
	case KindHosted:
		return "hosted"
	case KindRocketLaunch:
		return "rocket_launch"
	case KindRaid:
		return "raid"
	case KindNewGift:
		return "new_gift"
	default:
		return UnknownEvent
	}
}

// Known reports whether the kind is in the table.
func (k EventKind) Known() bool {
	return k.String() != UnknownEvent
}

// Classify maps a chat value code to its event name.
func Classify(code uint64) string {
	return EventKind(code).String()
}

// Kinds returns every known kind in code order.
func Kinds() []EventKind {
	return []EventKind{
		KindMessage, KindStreamer, KindChannelManager, KindLiveManager,
		KindSuperManager, KindGift, KindMagicChat, KindSubscribed,
		KindSystem, KindFollow, KindWelcome, KindGiftedSub,
		KindHosted, KindRocketLaunch, KindRaid, KindNewGift,
	}
}
