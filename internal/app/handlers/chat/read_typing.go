package chat

import (
	"context"
	"log/slog"
	"time"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/outbox"
	"mujthriftz/internal/app/policies"
	domainchat "mujthriftz/internal/domain/chat"
)

const (
	setTypingKey = "chat.typing.set"
	markReadKey  = "chat.conversations.mark_read"
)

type SetTypingCommand struct {
	UserID         string
	ConversationID string
	IsTyping       bool
}

func (c SetTypingCommand) Key() string     { return setTypingKey }
func (c SetTypingCommand) ActorID() string { return c.UserID }

// SetTypingHandler only relays presence; nothing is stored.
type SetTypingHandler struct {
	Repo      domainchat.Repository
	Publisher policies.Publisher
	Logger    *slog.Logger
}

func (h *SetTypingHandler) Handle(ctx context.Context, cmd SetTypingCommand) (dto.TypingEvent, error) {
	conv, err := loadForParticipant(ctx, h.Repo, cmd.ConversationID, cmd.UserID)
	if err != nil {
		return dto.TypingEvent{}, err
	}
	event := dto.TypingEvent{UserID: cmd.UserID, IsTyping: cmd.IsTyping}
	publish(ctx, h.Publisher, h.Logger, domainchat.PresenceChannel(conv.ID), domainchat.EventTyping, event)
	return event, nil
}

type MarkReadCommand struct {
	UserID         string
	ConversationID string
}

func (c MarkReadCommand) Key() string     { return markReadKey }
func (c MarkReadCommand) ActorID() string { return c.UserID }

// MarkReadHandler zeroes the caller's unread counter and flips the caller's received messages to read.
type MarkReadHandler struct {
	Repo      domainchat.Repository
	Publisher policies.Publisher
	Outbox    outbox.Outbox
	Logger    *slog.Logger
	Now       func() time.Time
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (dto.MarkReadResult, error) {
	conv, err := loadForParticipant(ctx, h.Repo, cmd.ConversationID, cmd.UserID)
	if err != nil {
		return dto.MarkReadResult{}, err
	}
	reader := domainchat.UserID(cmd.UserID)
	prior, err := h.Repo.ResetUnread(ctx, reader, conv.ID)
	if err != nil {
		return dto.MarkReadResult{}, err
	}
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	flipped, err := h.Repo.MarkMessagesRead(ctx, conv.ID, reader, now)
	if err != nil {
		return dto.MarkReadResult{}, err
	}
	result := dto.MarkReadResult{ConversationID: string(conv.ID), Cleared: prior}
	if prior == 0 && flipped == 0 {
		return result, nil
	}
	conv.Record(domainchat.ConversationReadEvent{ConversationID: conv.ID, ReaderID: reader, Cleared: prior, At: now.UTC()})
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, outbox.EncoderFor(ctx), conv.PullEvents()); err != nil {
		return dto.MarkReadResult{}, err
	}
	publish(ctx, h.Publisher, h.Logger, domainchat.PrivateChannel(conv.ID), domainchat.EventMessagesRead, dto.ReadEvent{
		ConversationID: string(conv.ID),
		ReaderID:       cmd.UserID,
		Cleared:        prior,
	})
	return result, nil
}

var (
	_ commands.Handler[SetTypingCommand, dto.TypingEvent]   = (*SetTypingHandler)(nil)
	_ commands.Handler[MarkReadCommand, dto.MarkReadResult] = (*MarkReadHandler)(nil)
)
