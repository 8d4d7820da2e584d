package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/dto"
	authsvc "mujthriftz/internal/app/services/auth"
	wishlistsvc "mujthriftz/internal/app/services/wishlist"
	"mujthriftz/internal/app/wiring"
	"mujthriftz/internal/infra/config"
	"mujthriftz/internal/infra/obs"
	"mujthriftz/internal/infra/outbox"
	"mujthriftz/internal/infra/realtime"
	"mujthriftz/internal/infra/security"
	"mujthriftz/internal/infra/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Send(_ context.Context, template string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, template)
	return nil
}

func (n *recordingNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type fakeAssets struct{}

func (fakeAssets) Upload(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "https://cdn.test/" + key, err
}

func (fakeAssets) Remove(context.Context, string) error { return nil }

type testApp struct {
	router   *gin.Engine
	notifier *recordingNotifier
	hub      *realtime.Hub
	queue    *outbox.MemoryQueue
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	users := memory.NewUserRepository()
	profiles := memory.NewProfileRepository()
	chats := memory.NewChatRepository()
	catalog := memory.NewCatalogRepository()
	hub := realtime.NewHub()
	queue := outbox.NewMemoryQueue()
	notifier := &recordingNotifier{}

	authService := &authsvc.Service{
		Users:     users,
		Profiles:  profiles,
		Sessions:  memory.NewSessionStore(),
		Passwords: security.BcryptHasher{Cost: 4},
		Tokens:    security.JWTIssuer{Secret: []byte("test-secret")},
	}
	wishlist := &wishlistsvc.Service{Store: memory.NewKV(), Catalog: catalog}
	buses := wiring.Build(wiring.Deps{
		Chat:      chats,
		Catalog:   catalog,
		Users:     users,
		Profiles:  profiles,
		Outbox:    queue,
		Publisher: hub,
		Assets:    fakeAssets{},
		Notifier:  notifier,
	})
	handlers := Handlers{
		Auth:           AuthHandler{Service: authService, Wishlist: wishlist},
		Chat:           ChatHandler{Commands: buses.Commands, Queries: buses.Queries},
		Catalog:        CatalogHandler{Commands: buses.Commands, Queries: buses.Queries},
		Profile:        ProfileHandler{Commands: buses.Commands, Queries: buses.Queries},
		Wishlist:       WishlistHandler{Service: wishlist},
		Support:        SupportHandler{Commands: buses.Commands},
		Realtime:       RealtimeHandler{Hub: hub, Authorize: realtime.ChatAuthorizer(chats)},
		AuthMiddleware: AuthMiddleware{Service: authService}.Handle,
	}
	router := NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, handlers)
	return &testApp{router: router, notifier: notifier, hub: hub, queue: queue}
}

type call struct {
	method string
	path   string
	token  string
	device string
	body   any
}

func (a *testApp) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.device != "" {
		req.Header.Set(deviceIDHeader, c.device)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testApp) register(t *testing.T, email, name string) dto.AuthResponse {
	t.Helper()
	rec := a.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]string{
		"email": email, "displayName": name, "password": "correct-horse",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dto.AuthResponse](t, rec)
}

func TestAuthRegisterMeLogout(t *testing.T) {
	app := newTestApp(t)
	auth := app.register(t, "ana@campus.edu", "Ana")
	require.NotEmpty(t, auth.Token)

	rec := app.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", token: auth.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User dto.UserProfile `json:"user"`
	}](t, rec)
	assert.Equal(t, "Ana", me.User.DisplayName)
	assert.Equal(t, auth.User.ID, me.User.ID)

	dup := app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]string{
		"email": "ANA@campus.edu", "displayName": "Other", "password": "correct-horse",
	}})
	assert.Equal(t, http.StatusConflict, dup.Code)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/logout", token: auth.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", token: auth.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{
		"email": "ana@campus.edu", "password": "wrong-password",
	}})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestChatRoutesEndToEnd(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice@campus.edu", "Alice")
	bob := app.register(t, "bob@campus.edu", "Bob")
	carol := app.register(t, "carol@campus.edu", "Carol")

	rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/create-conversation", token: alice.Token, body: map[string]string{
		"peerId": bob.User.ID, "itemId": "item-1", "itemType": "productListing",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conv := decode[dto.Conversation](t, rec)
	assert.ElementsMatch(t, []string{alice.User.ID, bob.User.ID}, conv.Participants)

	again := app.do(t, call{method: http.MethodPost, path: "/api/v1/create-conversation", token: bob.Token, body: map[string]string{
		"peerId": alice.User.ID, "itemId": "item-1",
	}})
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, conv.ID, decode[dto.Conversation](t, again).ID)

	sentAt := time.Now().UTC().Truncate(time.Millisecond)
	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/send-message", token: alice.Token, body: map[string]any{
		"conversationId": conv.ID, "text": "  is the lamp still there?  ", "timestamp": sentAt,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[dto.ChatMessage](t, rec)
	assert.Equal(t, bob.User.ID, msg.ReceiverID)
	assert.True(t, msg.Timestamp.Equal(sentAt), "client timestamp within skew is kept")

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + bob.User.ID + "/unread-count", token: bob.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	unread := decode[dto.UnreadCounts](t, rec)
	assert.Equal(t, 1, unread.Total)
	assert.Equal(t, 1, unread.Conversations[conv.ID])

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/conversations/" + conv.ID + "/messages", token: bob.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]dto.ChatMessage](t, rec), 1)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/conversations/" + conv.ID + "/mark-read", token: bob.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[dto.MarkReadResult](t, rec).Cleared)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/conversations/" + conv.ID + "/typing", token: bob.Token, body: map[string]bool{"isTyping": true}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + alice.User.ID + "/conversations", token: alice.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[[]dto.Conversation](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, "is the lamp still there?", inbox[0].LastMessage)

	t.Run("outsiders are refused", func(t *testing.T) {
		rec := app.do(t, call{method: http.MethodGet, path: "/api/v1/conversations/" + conv.ID + "/messages", token: carol.Token})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + alice.User.ID + "/conversations", token: carol.Token})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/conversations/missing/messages", token: carol.Token})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("anonymous callers get 401", func(t *testing.T) {
		rec := app.do(t, call{method: http.MethodGet, path: "/api/v1/conversations/" + conv.ID + "/messages"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"auth required"}`, rec.Body.String())
	})

	t.Run("blank text is a validation error", func(t *testing.T) {
		rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/send-message", token: alice.Token, body: map[string]string{
			"conversationId": conv.ID, "text": "   ",
		}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + bob.User.ID, token: alice.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", decode[dto.PublicUser](t, rec).DisplayName)
}

func TestCatalogLifecycle(t *testing.T) {
	app := newTestApp(t)
	owner := app.register(t, "owner@campus.edu", "Owner")
	other := app.register(t, "other@campus.edu", "Other")

	create := func(title string, price int64) dto.Document {
		rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/catalog/listing", token: owner.Token, body: map[string]any{
			"title": title, "price": price, "category": "furniture", "condition": "good",
		}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[dto.Document](t, rec)
	}
	first := create("Study Desk", 1500)
	second := create("Study Desk", 900)
	create("Desk Lamp", 200)
	assert.Equal(t, "study-desk", first.Slug)
	assert.Equal(t, "study-desk-2", second.Slug)

	rec := app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/productListing?q=desk&price_max=1000&sort=price_low"})
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.DocumentList](t, rec)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Desk Lamp", list.Items[0].Title)
	assert.Equal(t, second.ID, list.Items[1].ID)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/listing?price_min=abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/listing?price_max=0"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[dto.DocumentList](t, rec).Items, "a zero ceiling only admits free items")

	rec = app.do(t, call{method: http.MethodPatch, path: "/api/v1/catalog/listing/" + first.ID, token: other.Token, body: map[string]any{"price": 1}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, call{method: http.MethodDelete, path: "/api/v1/catalog/listing/" + first.ID, token: owner.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[dto.Document](t, rec).Active)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/listing/study-desk", token: other.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/listing/study-desk", token: owner.Token})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/me/catalog", token: owner.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[dto.DocumentList](t, rec).Total)

	rec = app.do(t, call{method: http.MethodDelete, path: "/api/v1/catalog/listing/" + first.ID + "?hard=true", token: owner.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/listing/study-desk", token: owner.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/boats"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWishlistIsScopedByDevice(t *testing.T) {
	app := newTestApp(t)
	owner := app.register(t, "seller@campus.edu", "Seller")
	rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/catalog/roommate", token: owner.Token, body: map[string]any{
		"title": "Looking for a roommate", "gender": "any", "room_type": "double",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[dto.Document](t, rec)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/" + doc.ID + "/toggle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/" + doc.ID + "/toggle", device: "phone"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.WishlistToggle](t, rec).Saved)
	app.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/ghost/toggle", device: "phone"})

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/wishlist", device: "phone"})
	require.Equal(t, http.StatusOK, rec.Code)
	wl := decode[dto.Wishlist](t, rec)
	assert.ElementsMatch(t, []string{doc.ID, "ghost"}, wl.IDs)
	require.Len(t, wl.Items, 1, "stale ids are skipped when resolving")
	assert.Equal(t, doc.ID, wl.Items[0].ID)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/wishlist", device: "laptop"})
	assert.Empty(t, decode[dto.Wishlist](t, rec).IDs)

	// logging in on the phone drops whatever the previous session saved there
	login := app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", device: "phone", body: map[string]string{
		"email": "seller@campus.edu", "password": "correct-horse",
	}})
	require.Equal(t, http.StatusOK, login.Code)
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/wishlist", device: "phone"})
	assert.Empty(t, decode[dto.Wishlist](t, rec).IDs)
}

func TestSupportFormsAreAccepted(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/contact", body: map[string]string{
		"name": "Visitor", "email": "visitor@example.com", "message": "hello",
	}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/contact", body: map[string]string{
		"name": "Visitor", "email": "not-an-email", "message": "hello",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/reports", body: map[string]string{"target_id": "x", "reason": "spam"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user := app.register(t, "reporter@campus.edu", "Reporter")
	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/reports", token: user.Token, body: map[string]string{"target_id": "x", "reason": "spam"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []string{"contact", "report"}, app.notifier.templates())
}

func TestProfileUpdateRoundTrip(t *testing.T) {
	app := newTestApp(t)
	user := app.register(t, "pat@campus.edu", "Pat")
	rec := app.do(t, call{method: http.MethodPut, path: "/api/v1/me/profile", token: user.Token, body: map[string]any{
		"display_name": "Pat K", "hostel": "H3", "year": 2, "phone": "+91 98765 43210",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Pat K", decode[dto.Profile](t, rec).DisplayName)

	rec = app.do(t, call{method: http.MethodPut, path: "/api/v1/me/profile", token: user.Token, body: map[string]any{
		"display_name": "Pat", "year": 9,
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + user.User.ID, token: user.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "98765", "public profile hides the phone number")
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, http.StatusOK, app.do(t, call{method: http.MethodGet, path: "/livez"}).Code)
	assert.Equal(t, http.StatusOK, app.do(t, call{method: http.MethodGet, path: "/readyz"}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, call{method: http.MethodGet, path: "/api/v1/nope"}).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, call{method: http.MethodGet, path: "/realtime"}).Code)
}

func TestLogoutClearsSessionDeviceWishlist(t *testing.T) {
	app := newTestApp(t)
	login := func(device string) dto.AuthResponse {
		rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", device: device, body: map[string]string{
			"email": "dev@campus.edu", "password": "correct-horse",
		}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[dto.AuthResponse](t, rec)
	}
	app.register(t, "dev@campus.edu", "Dev")
	tablet := login("tablet")
	desktop := login("desktop")

	// signed-in requests without the header fall back to the session's device
	rec := app.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/item-1/toggle", token: tablet.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/wishlist", device: "tablet"})
	assert.Equal(t, []string{"item-1"}, decode[dto.Wishlist](t, rec).IDs)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/logout", token: tablet.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/wishlist", device: "tablet"})
	assert.Empty(t, decode[dto.Wishlist](t, rec).IDs)

	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/logout/all"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = app.do(t, call{method: http.MethodPost, path: "/api/v1/auth/logout/all", token: desktop.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", token: desktop.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
