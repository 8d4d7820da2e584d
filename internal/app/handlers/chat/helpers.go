package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"mujthriftz/internal/app/policies"
	domainchat "mujthriftz/internal/domain/chat"
)

// ErrSelfOnly is returned when a user asks for another user's inbox.
var ErrSelfOnly = errors.New("chat: only the owner may read this inbox")

// Metrics observes messaging activity. A nil Metrics is ignored.
type Metrics interface {
	MessageSent(itemType string)
	ConversationStarted()
}

// loadForParticipant fetches a conversation and checks that user takes part in it.
func loadForParticipant(ctx context.Context, repo domainchat.Repository, id, user string) (*domainchat.Conversation, error) {
	if repo == nil {
		return nil, errors.New("chat: repository required")
	}
	conversationID := domainchat.ConversationID(strings.TrimSpace(id))
	if conversationID == "" {
		return nil, domainchat.ErrConversationNotFound
	}
	conv, err := repo.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(domainchat.UserID(user)) {
		return nil, domainchat.ErrNotParticipant
	}
	return conv, nil
}

// publish pushes a realtime event. Delivery is best effort: stored state is already committed.
func publish(ctx context.Context, pub policies.Publisher, logger *slog.Logger, channel, event string, data any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, channel, event, data); err != nil && logger != nil {
		logger.Warn("realtime publish failed", "channel", channel, "event", event, "error", err)
	}
}
