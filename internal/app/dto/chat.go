package dto

import (
	"time"

	domainchat "mujthriftz/internal/domain/chat"
)

// Messaging payloads keep the camelCase field names chat clients already speak.

type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	ItemID       string    `json:"itemId"`
	ItemType     string    `json:"itemType,omitempty"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	LastSender   string    `json:"lastSender,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	ItemType       string    `json:"itemType,omitempty"`
}

type UnreadCounts struct {
	Total         int            `json:"total"`
	Conversations map[string]int `json:"conversations"`
}

type TypingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ReadEvent struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
	Cleared        int    `json:"cleared"`
}

type MarkReadResult struct {
	ConversationID string `json:"conversationId"`
	Cleared        int    `json:"cleared"`
}

func MapConversation(conv *domainchat.Conversation) Conversation {
	if conv == nil {
		return Conversation{}
	}
	return Conversation{
		ID:           string(conv.ID),
		Participants: []string{string(conv.Participants[0]), string(conv.Participants[1])},
		ItemID:       conv.ItemID,
		ItemType:     conv.ItemType,
		LastMessage:  conv.LastMessage,
		LastSender:   string(conv.LastSender),
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

func MapConversations(items []*domainchat.Conversation) []Conversation {
	out := make([]Conversation, 0, len(items))
	for _, conv := range items {
		out = append(out, MapConversation(conv))
	}
	return out
}

func MapChatMessage(msg *domainchat.Message) ChatMessage {
	if msg == nil {
		return ChatMessage{}
	}
	return ChatMessage{
		ID:             string(msg.ID),
		ConversationID: string(msg.ConversationID),
		SenderID:       string(msg.SenderID),
		ReceiverID:     string(msg.ReceiverID),
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		Status:         string(msg.Status),
		ItemType:       msg.ItemType,
	}
}

func MapChatMessages(items []*domainchat.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(items))
	for _, msg := range items {
		out = append(out, MapChatMessage(msg))
	}
	return out
}

func MapUnread(summary domainchat.UnreadSummary) UnreadCounts {
	out := UnreadCounts{Total: summary.Total, Conversations: make(map[string]int, len(summary.Conversations))}
	for id, n := range summary.Conversations {
		out.Conversations[string(id)] = n
	}
	return out
}
