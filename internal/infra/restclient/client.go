// Package restclient talks to the marketplace messaging API over HTTP and to its
// realtime endpoint over a websocket. It backs the chatsync views in terminal clients.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/chatsync"
)

const defaultTimeout = 15 * time.Second

var ErrNotFound = errors.New("restclient: not found")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("restclient: status %d", e.Status)
	}
	return fmt.Sprintf("restclient: status %d: %s", e.Status, e.Message)
}

// Is lets callers match 404 answers with errors.Is(err, ErrNotFound).
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	// BaseURL points at the API root, for example http://localhost:8080/api/v1.
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type sendBody struct {
	ConversationID string    `json:"conversationId"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	ItemType       string    `json:"itemType,omitempty"`
}

type typingBody struct {
	IsTyping bool `json:"isTyping"`
}

type startBody struct {
	PeerID   string `json:"peerId"`
	ItemID   string `json:"itemId"`
	ItemType string `json:"itemType,omitempty"`
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]dto.ChatMessage, error) {
	var out []dto.ChatMessage
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &out)
	return out, err
}

func (c *Client) Send(ctx context.Context, req chatsync.SendRequest) (dto.ChatMessage, error) {
	var out dto.ChatMessage
	err := c.do(ctx, http.MethodPost, "/send-message", sendBody{
		ConversationID: req.ConversationID,
		Text:           req.Text,
		Timestamp:      req.Timestamp,
		ItemType:       req.ItemType,
	}, &out)
	return out, err
}

func (c *Client) Typing(ctx context.Context, conversationID string, isTyping bool) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/typing", typingBody{IsTyping: isTyping}, nil)
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) (dto.MarkReadResult, error) {
	var out dto.MarkReadResult
	err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/mark-read", nil, &out)
	return out, err
}

func (c *Client) Conversations(ctx context.Context, userID string) ([]dto.Conversation, error) {
	var out []dto.Conversation
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/conversations", nil, &out)
	return out, err
}

func (c *Client) UnreadCounts(ctx context.Context, userID string) (dto.UnreadCounts, error) {
	var out dto.UnreadCounts
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/unread-count", nil, &out)
	return out, err
}

func (c *Client) User(ctx context.Context, userID string) (dto.PublicUser, error) {
	var out dto.PublicUser
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &out)
	return out, err
}

// StartConversation gets or creates the thread with peer about one item.
func (c *Client) StartConversation(ctx context.Context, peerID, itemID, itemType string) (dto.Conversation, error) {
	var out dto.Conversation
	err := c.do(ctx, http.MethodPost, "/create-conversation", startBody{PeerID: peerID, ItemID: itemID, ItemType: itemType}, &out)
	return out, err
}

// Me resolves the token's user.
func (c *Client) Me(ctx context.Context) (dto.UserProfile, error) {
	var out struct {
		User dto.UserProfile `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out.User, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("restclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("restclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: defaultTimeout}
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

var _ chatsync.Messaging = (*Client)(nil)
