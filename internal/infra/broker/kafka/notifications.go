package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	"mujthriftz/internal/app/policies"
	domainchat "mujthriftz/internal/domain/chat"
	domainuser "mujthriftz/internal/domain/user"
	"mujthriftz/internal/infra/inbox"
)

const (
	messageSentType = "chat.message_sent.v1"
	// TemplateNewMessage is the mail template for "you have a new message".
	TemplateNewMessage = "message"
)

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NotificationHandler emails the receiver of every new chat message, once per event id.
type NotificationHandler struct {
	Users  domainuser.Repository
	Mailer policies.Notifier
	Inbox  inbox.Deduper
	Logger *slog.Logger
}

func (h *NotificationHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env cloudEvent
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		// unparseable records are skipped so they do not block the partition
		h.warn("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if env.Type != messageSentType || h.Mailer == nil || h.Users == nil {
		return nil
	}
	var data domainchat.MessageSentEvent
	if err := json.Unmarshal(env.Data, &data); err != nil {
		h.warn("dropping malformed message event", "id", env.ID, "error", err)
		return nil
	}
	if h.Inbox != nil && env.ID != "" {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	receiver, err := h.Users.ByID(ctx, domainuser.ID(data.ReceiverID))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil
		}
		return err
	}
	senderName := string(data.SenderID)
	if sender, err := h.Users.ByID(ctx, domainuser.ID(data.SenderID)); err == nil && sender.DisplayName != "" {
		senderName = sender.DisplayName
	}
	return h.Mailer.Send(ctx, TemplateNewMessage, map[string]string{
		"to_email":        receiver.Email,
		"to_name":         receiver.DisplayName,
		"from_name":       senderName,
		"preview":         data.Preview,
		"conversation_id": string(data.ConversationID),
	})
}

func (h *NotificationHandler) warn(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Warn(msg, args...)
	}
}

var _ MessageHandler = (*NotificationHandler)(nil)
