package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

type MessageID string

type Status string

const (
	StatusSent Status = "sent"
	StatusRead Status = "read"
)

// Message is immutable once stored except for the sent -> read transition.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	ReceiverID     UserID
	Text           string
	Timestamp      time.Time
	Status         Status
	ItemType       string
}

type NewMessageParams struct {
	ID           MessageID
	Conversation *Conversation
	SenderID     UserID
	Text         string
	ItemType     string
	Timestamp    time.Time
}

// NewMessage validates a message addressed from sender to the other participant.
func NewMessage(params NewMessageParams) (*Message, error) {
	if params.Conversation == nil {
		return nil, ErrConversationNotFound
	}
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, ErrTextRequired
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, ErrTextTooLong
	}
	receiver, err := params.Conversation.Counterpart(params.SenderID)
	if err != nil {
		return nil, err
	}
	at := params.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	itemType := strings.TrimSpace(params.ItemType)
	if itemType == "" {
		itemType = params.Conversation.ItemType
	}
	return &Message{
		ID:             params.ID,
		ConversationID: params.Conversation.ID,
		SenderID:       params.SenderID,
		ReceiverID:     receiver,
		Text:           text,
		Timestamp:      at.UTC(),
		Status:         StatusSent,
		ItemType:       itemType,
	}, nil
}

// MarkRead moves a sent message to read. Reading twice is a no-op.
func (m *Message) MarkRead() error {
	switch m.Status {
	case StatusRead:
		return nil
	case StatusSent, "":
		m.Status = StatusRead
		return nil
	default:
		return ErrInvalidStatus
	}
}

// ClampTimestamp accepts a client supplied timestamp when it is within skew of now.
func ClampTimestamp(client, now time.Time, skew time.Duration) time.Time {
	if client.IsZero() {
		return now.UTC()
	}
	diff := client.Sub(now)
	if diff < 0 {
		diff = -diff
	}
	if diff > skew {
		return now.UTC()
	}
	return client.UTC()
}
