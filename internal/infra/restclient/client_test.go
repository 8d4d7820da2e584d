package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/chatsync"
	"mujthriftz/internal/infra/realtime"
)

func TestClientSendsAuthorizedJSON(t *testing.T) {
	sentAt := time.Date(2026, 3, 10, 12, 0, 0, 123000000, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/send-message", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body sendBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1_u2_prod123", body.ConversationID)
		assert.Equal(t, "still available?", body.Text)
		assert.True(t, sentAt.Equal(body.Timestamp))
		_ = json.NewEncoder(w).Encode(dto.ChatMessage{ID: "m1", ConversationID: body.ConversationID, Text: body.Text, Timestamp: body.Timestamp, Status: "sent"})
	})
	mux.HandleFunc("GET /api/v1/users/u1/unread-count", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total":3,"conversations":{"u1_u2_prod123":3}}`))
	})
	mux.HandleFunc("POST /api/v1/conversations/u1_u2_prod123/typing", func(w http.ResponseWriter, r *http.Request) {
		var body typingBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.IsTyping)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL+"/api/v1/", "tok", time.Second)
	ctx := context.Background()

	msg, err := client.Send(ctx, chatsync.SendRequest{ConversationID: "u1_u2_prod123", Text: "still available?", Timestamp: sentAt})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)

	counts, err := client.UnreadCounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 3, counts.Conversations["u1_u2_prod123"])

	require.NoError(t, client.Typing(ctx, "u1_u2_prod123", true))
}

func TestClientMapsErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/messages") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"not a chat participant"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	client := New(srv.URL, "", time.Second)

	_, err := client.Messages(context.Background(), "u1_u2_x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "not a chat participant", apiErr.Message)

	_, err = client.User(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSocketSubscribesAndDispatches(t *testing.T) {
	hub := realtime.NewHub()
	denied := denyChannel("presence-chat-secret")
	upgrader := websocket.Upgrader{}
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, realtime.SessionConfig{User: "u1", Authorize: denied})
	}))
	defer srv.Close()

	socket := NewSocket("ws"+strings.TrimPrefix(srv.URL, "http"), "tok", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events := make(chan string, 4)
	sub, err := socket.Subscribe(ctx, "private-chat-u1_u2_x", func(event string, data json.RawMessage) {
		events <- event + " " + string(data)
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", <-auth)

	_, err = socket.Subscribe(ctx, "presence-chat-secret", func(string, json.RawMessage) {})
	assert.ErrorIs(t, err, ErrSubscriptionError)

	require.NoError(t, hub.Publish(ctx, "private-chat-u1_u2_x", "new-message", map[string]string{"id": "m1"}))
	select {
	case got := <-events:
		assert.Equal(t, `new-message {"id":"m1"}`, got)
	case <-ctx.Done():
		t.Fatal("event not dispatched")
	}

	require.NoError(t, sub.Unsubscribe())
	assert.Eventually(t, func() bool { return hub.Subscribers("private-chat-u1_u2_x") == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, socket.Close())
}

func denyChannel(channel string) realtime.Authorizer {
	return func(_ context.Context, _, requested string) error {
		if requested == channel {
			return realtime.ErrUnknownChannel
		}
		return nil
	}
}
