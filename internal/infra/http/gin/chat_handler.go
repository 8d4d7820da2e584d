package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	chatapp "mujthriftz/internal/app/handlers/chat"
	"mujthriftz/internal/app/queries"
)

// ChatHandler serves the messaging backend consumed by the chat and inbox views.
type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type startConversationRequest struct {
	PeerID   string `json:"peerId"`
	ItemID   string `json:"itemId"`
	ItemType string `json:"itemType"`
}

type sendMessageRequest struct {
	ConversationID string    `json:"conversationId"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	ItemType       string    `json:"itemType"`
}

type typingRequest struct {
	IsTyping bool `json:"isTyping"`
}

func (h ChatHandler) StartConversation(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := chatapp.StartConversationCommand{
		UserID:   principal.ID,
		PeerID:   strings.TrimSpace(req.PeerID),
		ItemID:   strings.TrimSpace(req.ItemID),
		ItemType: strings.TrimSpace(req.ItemType),
	}
	conv, err := commands.Dispatch[chatapp.StartConversationCommand, dto.Conversation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "start conversation", "user_id", principal.ID, "peer_id", cmd.PeerID)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	query := chatapp.ListMessagesQuery{UserID: principal.ID, ConversationID: c.Param("id")}
	messages, err := queries.Ask[chatapp.ListMessagesQuery, []dto.ChatMessage](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err, "list messages", "conversation_id", query.ConversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := chatapp.SendMessageCommand{
		SenderID:        principal.ID,
		ConversationID:  strings.TrimSpace(req.ConversationID),
		Text:            req.Text,
		ItemType:        strings.TrimSpace(req.ItemType),
		ClientTimestamp: req.Timestamp,
	}
	msg, err := commands.Dispatch[chatapp.SendMessageCommand, dto.ChatMessage](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "send message", "conversation_id", cmd.ConversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h ChatHandler) Typing(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := chatapp.SetTypingCommand{UserID: principal.ID, ConversationID: c.Param("id"), IsTyping: req.IsTyping}
	if _, err := commands.Dispatch[chatapp.SetTypingCommand, dto.TypingEvent](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err, "typing", "conversation_id", cmd.ConversationID, "user_id", principal.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	// the body is optional; an empty POST is the common case
	var ignored struct{}
	if err := c.ShouldBindJSON(&ignored); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := chatapp.MarkReadCommand{UserID: principal.ID, ConversationID: c.Param("id")}
	result, err := commands.Dispatch[chatapp.MarkReadCommand, dto.MarkReadResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "mark read", "conversation_id", cmd.ConversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) ListConversations(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	query := chatapp.ListConversationsQuery{RequesterID: principal.ID, UserID: c.Param("id")}
	items, err := queries.Ask[chatapp.ListConversationsQuery, []dto.Conversation](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err, "list conversations", "user_id", query.UserID)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h ChatHandler) UnreadCount(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	query := chatapp.UnreadCountsQuery{RequesterID: principal.ID, UserID: c.Param("id")}
	counts, err := queries.Ask[chatapp.UnreadCountsQuery, dto.UnreadCounts](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err, "unread count", "user_id", query.UserID)
		return
	}
	c.JSON(http.StatusOK, counts)
}

var _ ChatHTTP = (*ChatHandler)(nil)
