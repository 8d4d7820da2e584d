package chat

import (
	"context"
	"time"
)

// Repository persists conversations, messages and unread counters.
type Repository interface {
	Conversation(ctx context.Context, id ConversationID) (*Conversation, error)
	// CreateConversation returns ErrConversationExists when the id is taken.
	CreateConversation(ctx context.Context, conv *Conversation) error
	SaveConversation(ctx context.Context, conv *Conversation) error
	ConversationsFor(ctx context.Context, user UserID) ([]*Conversation, error)

	AppendMessage(ctx context.Context, msg *Message) error
	// Messages returns the full history in ascending timestamp order.
	Messages(ctx context.Context, id ConversationID) ([]*Message, error)
	// MarkMessagesRead flips every message addressed to reader to read and returns how many changed.
	MarkMessagesRead(ctx context.Context, id ConversationID, reader UserID, at time.Time) (int, error)

	IncrementUnread(ctx context.Context, user UserID, id ConversationID) error
	// ResetUnread zeroes the counter and returns its prior value.
	ResetUnread(ctx context.Context, user UserID, id ConversationID) (int, error)
	UnreadCounts(ctx context.Context, user UserID) (map[ConversationID]int, error)
}

// UnreadSummary is the per-user unread view returned to inboxes.
type UnreadSummary struct {
	Total         int
	Conversations map[ConversationID]int
}

// Summarize totals the per conversation counters, skipping empty ones.
func Summarize(counts map[ConversationID]int) UnreadSummary {
	out := UnreadSummary{Conversations: make(map[ConversationID]int, len(counts))}
	for id, n := range counts {
		if n <= 0 {
			continue
		}
		out.Conversations[id] = n
		out.Total += n
	}
	return out
}
