// Package chatsync keeps a client-side chat view and inbox in step with the
// messaging backend and its realtime channels.
package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mujthriftz/internal/app/dto"
)

var (
	ErrLoginRequired = errors.New("chatsync: log in to send messages")
	ErrUnknownThread = errors.New("chatsync: conversation not in inbox")
)

type SendRequest struct {
	ConversationID string
	Text           string
	Timestamp      time.Time
	ItemType       string
}

// Messaging is the REST surface of the messaging backend.
type Messaging interface {
	Messages(ctx context.Context, conversationID string) ([]dto.ChatMessage, error)
	Send(ctx context.Context, req SendRequest) (dto.ChatMessage, error)
	Typing(ctx context.Context, conversationID string, isTyping bool) error
	MarkRead(ctx context.Context, conversationID string) (dto.MarkReadResult, error)
	Conversations(ctx context.Context, userID string) ([]dto.Conversation, error)
	UnreadCounts(ctx context.Context, userID string) (dto.UnreadCounts, error)
	User(ctx context.Context, userID string) (dto.PublicUser, error)
}

// EventHandler receives one realtime event. It must not block.
type EventHandler func(event string, data json.RawMessage)

type Subscription interface {
	Unsubscribe() error
}

// Realtime subscribes to named channels.
type Realtime interface {
	Subscribe(ctx context.Context, channel string, handler EventHandler) (Subscription, error)
}
