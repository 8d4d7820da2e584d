package chat

import "time"

type ConversationStartedEvent struct {
	ConversationID ConversationID
	Initiator      UserID
	ItemID         string
	At             time.Time
}

func (e ConversationStartedEvent) EventName() string     { return "chat.conversation_started" }
func (e ConversationStartedEvent) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationStartedEvent) OccurredAt() time.Time { return e.At }

type MessageSentEvent struct {
	ConversationID ConversationID
	MessageID      MessageID
	SenderID       UserID
	ReceiverID     UserID
	Preview        string
	At             time.Time
}

func (e MessageSentEvent) EventName() string     { return "chat.message_sent" }
func (e MessageSentEvent) AggregateID() string   { return string(e.ConversationID) }
func (e MessageSentEvent) OccurredAt() time.Time { return e.At }

type ConversationReadEvent struct {
	ConversationID ConversationID
	ReaderID       UserID
	Cleared        int
	At             time.Time
}

func (e ConversationReadEvent) EventName() string     { return "chat.conversation_read" }
func (e ConversationReadEvent) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationReadEvent) OccurredAt() time.Time { return e.At }

// NewMessageSentEvent builds the event for a stored message.
func NewMessageSentEvent(msg *Message) MessageSentEvent {
	return MessageSentEvent{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Preview:        snippet(msg.Text, 80),
		At:             msg.Timestamp,
	}
}
