package chat

import "strings"

const (
	privateChannelPrefix  = "private-chat-"
	presenceChannelPrefix = "presence-chat-"

	EventNewMessage   = "new-message"
	EventMessagesRead = "messages-read"
	EventTyping       = "typing"
)

// PrivateChannel carries message and read-receipt events of one conversation.
func PrivateChannel(id ConversationID) string {
	return privateChannelPrefix + string(id)
}

// PresenceChannel carries typing events of one conversation.
func PresenceChannel(id ConversationID) string {
	return presenceChannelPrefix + string(id)
}

// ConversationFromChannel extracts the conversation id of a chat channel name.
func ConversationFromChannel(channel string) (ConversationID, bool) {
	for _, prefix := range []string{privateChannelPrefix, presenceChannelPrefix} {
		if rest, ok := strings.CutPrefix(channel, prefix); ok && rest != "" {
			return ConversationID(rest), true
		}
	}
	return "", false
}
