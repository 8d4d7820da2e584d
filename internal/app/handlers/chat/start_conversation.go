package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/outbox"
	domainchat "mujthriftz/internal/domain/chat"
)

const startConversationKey = "chat.conversations.start"

// StartConversationCommand gets or creates the thread between the caller and a peer about one item.
type StartConversationCommand struct {
	UserID   string
	PeerID   string
	ItemID   string
	ItemType string
}

func (c StartConversationCommand) Key() string     { return startConversationKey }
func (c StartConversationCommand) ActorID() string { return c.UserID }

func (c StartConversationCommand) Validate() error {
	if strings.TrimSpace(c.PeerID) == "" || strings.TrimSpace(c.PeerID) == strings.TrimSpace(c.UserID) {
		return domainchat.ErrParticipantsRequired
	}
	if strings.TrimSpace(c.ItemID) == "" {
		return domainchat.ErrItemRequired
	}
	return nil
}

type StartConversationHandler struct {
	Repo    domainchat.Repository
	Outbox  outbox.Outbox
	Metrics Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *StartConversationHandler) Handle(ctx context.Context, cmd StartConversationCommand) (dto.Conversation, error) {
	id, err := domainchat.DeriveConversationID(domainchat.UserID(cmd.UserID), domainchat.UserID(cmd.PeerID), cmd.ItemID)
	if err != nil {
		return dto.Conversation{}, err
	}
	existing, err := h.Repo.Conversation(ctx, id)
	if err == nil {
		return dto.MapConversation(existing), nil
	}
	if !errors.Is(err, domainchat.ErrConversationNotFound) {
		return dto.Conversation{}, err
	}

	conv, err := domainchat.NewConversation(domainchat.StartParams{
		Initiator: domainchat.UserID(cmd.UserID),
		Peer:      domainchat.UserID(cmd.PeerID),
		ItemID:    cmd.ItemID,
		ItemType:  cmd.ItemType,
		Now:       h.now(),
	})
	if err != nil {
		return dto.Conversation{}, err
	}
	if err := h.Repo.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, domainchat.ErrConversationExists) {
			// lost a concurrent create; the stored one wins
			stored, loadErr := h.Repo.Conversation(ctx, id)
			if loadErr != nil {
				return dto.Conversation{}, loadErr
			}
			return dto.MapConversation(stored), nil
		}
		return dto.Conversation{}, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, outbox.EncoderFor(ctx), conv.PullEvents()); err != nil {
		return dto.Conversation{}, err
	}
	if h.Metrics != nil {
		h.Metrics.ConversationStarted()
	}
	if h.Logger != nil {
		h.Logger.Info("conversation started", "conversation_id", conv.ID, "item_id", conv.ItemID)
	}
	return dto.MapConversation(conv), nil
}

func (h *StartConversationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

var _ commands.Handler[StartConversationCommand, dto.Conversation] = (*StartConversationHandler)(nil)
