package chat

import (
	"context"

	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/queries"
	domainchat "mujthriftz/internal/domain/chat"
)

const (
	listMessagesKey      = "chat.messages.list"
	listConversationsKey = "chat.conversations.list"
	unreadCountsKey      = "chat.unread.counts"
)

type ListMessagesQuery struct {
	UserID         string
	ConversationID string
}

func (q ListMessagesQuery) Key() string { return listMessagesKey }

// ListMessagesHandler returns the full history, oldest first.
type ListMessagesHandler struct {
	Repo domainchat.Repository
}

func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) ([]dto.ChatMessage, error) {
	conv, err := loadForParticipant(ctx, h.Repo, q.ConversationID, q.UserID)
	if err != nil {
		return nil, err
	}
	messages, err := h.Repo.Messages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return dto.MapChatMessages(messages), nil
}

type ListConversationsQuery struct {
	RequesterID string
	UserID      string
}

func (q ListConversationsQuery) Key() string { return listConversationsKey }

type ListConversationsHandler struct {
	Repo domainchat.Repository
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) ([]dto.Conversation, error) {
	if q.RequesterID == "" || q.RequesterID != q.UserID {
		return nil, ErrSelfOnly
	}
	items, err := h.Repo.ConversationsFor(ctx, domainchat.UserID(q.UserID))
	if err != nil {
		return nil, err
	}
	domainchat.SortByActivity(items)
	return dto.MapConversations(items), nil
}

type UnreadCountsQuery struct {
	RequesterID string
	UserID      string
}

func (q UnreadCountsQuery) Key() string { return unreadCountsKey }

type UnreadCountsHandler struct {
	Repo domainchat.Repository
}

func (h *UnreadCountsHandler) Handle(ctx context.Context, q UnreadCountsQuery) (dto.UnreadCounts, error) {
	if q.RequesterID == "" || q.RequesterID != q.UserID {
		return dto.UnreadCounts{}, ErrSelfOnly
	}
	counts, err := h.Repo.UnreadCounts(ctx, domainchat.UserID(q.UserID))
	if err != nil {
		return dto.UnreadCounts{}, err
	}
	return dto.MapUnread(domainchat.Summarize(counts)), nil
}

var (
	_ queries.Handler[ListMessagesQuery, []dto.ChatMessage]       = (*ListMessagesHandler)(nil)
	_ queries.Handler[ListConversationsQuery, []dto.Conversation] = (*ListConversationsHandler)(nil)
	_ queries.Handler[UnreadCountsQuery, dto.UnreadCounts]        = (*UnreadCountsHandler)(nil)
)
