package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/outbox"
	"mujthriftz/internal/app/policies"
	domainchat "mujthriftz/internal/domain/chat"
)

const sendMessageKey = "chat.messages.send"

// ClientClockSkew bounds how far a client timestamp may drift before the server clock replaces it.
const ClientClockSkew = 5 * time.Minute

type SendMessageCommand struct {
	SenderID        string
	ConversationID  string
	Text            string
	ItemType        string
	ClientTimestamp time.Time
}

func (c SendMessageCommand) Key() string     { return sendMessageKey }
func (c SendMessageCommand) ActorID() string { return c.SenderID }

type SendMessageHandler struct {
	Repo      domainchat.Repository
	Publisher policies.Publisher
	Outbox    outbox.Outbox
	Metrics   Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Handle stores the message, bumps the receiver's unread counter, refreshes the
// conversation summary and then announces new-message on the private channel.
func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (dto.ChatMessage, error) {
	conv, err := loadForParticipant(ctx, h.Repo, cmd.ConversationID, cmd.SenderID)
	if err != nil {
		return dto.ChatMessage{}, err
	}
	now := h.now()
	msg, err := domainchat.NewMessage(domainchat.NewMessageParams{
		ID:           domainchat.MessageID(uuid.NewString()),
		Conversation: conv,
		SenderID:     domainchat.UserID(cmd.SenderID),
		Text:         cmd.Text,
		ItemType:     cmd.ItemType,
		Timestamp:    domainchat.ClampTimestamp(cmd.ClientTimestamp, now, ClientClockSkew),
	})
	if err != nil {
		return dto.ChatMessage{}, err
	}
	if err := h.Repo.AppendMessage(ctx, msg); err != nil {
		return dto.ChatMessage{}, err
	}
	if err := h.Repo.IncrementUnread(ctx, msg.ReceiverID, conv.ID); err != nil {
		return dto.ChatMessage{}, err
	}
	conv.Touch(msg)
	if err := h.Repo.SaveConversation(ctx, conv); err != nil {
		return dto.ChatMessage{}, err
	}
	conv.Record(domainchat.NewMessageSentEvent(msg))
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, outbox.EncoderFor(ctx), conv.PullEvents()); err != nil {
		return dto.ChatMessage{}, err
	}

	result := dto.MapChatMessage(msg)
	publish(ctx, h.Publisher, h.Logger, domainchat.PrivateChannel(conv.ID), domainchat.EventNewMessage, result)
	if h.Metrics != nil {
		h.Metrics.MessageSent(msg.ItemType)
	}
	if h.Logger != nil {
		h.Logger.Debug("message stored", "conversation_id", conv.ID, "message_id", msg.ID)
	}
	return result, nil
}

func (h *SendMessageHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

var _ commands.Handler[SendMessageCommand, dto.ChatMessage] = (*SendMessageHandler)(nil)
