package chatsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/dto"
	domainchat "mujthriftz/internal/domain/chat"
)

func inboxFixture() *fakeMessaging {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &fakeMessaging{
		conversations: []dto.Conversation{
			{ID: "u1_u2_prod123", Participants: []string{"u1", "u2"}, ItemID: "prod123", UpdatedAt: base.Add(-time.Hour)},
			{ID: "u1_u3_req9", Participants: []string{"u1", "u3"}, ItemID: "req9", UpdatedAt: base},
			{ID: "u1_u2_room4", Participants: []string{"u1", "u2"}, ItemID: "room4", UpdatedAt: base.Add(-2 * time.Hour)},
		},
		unread: dto.UnreadCounts{Total: 5, Conversations: map[string]int{
			"u1_u2_prod123": 3,
			"u1_u3_req9":    2,
		}},
		users: map[string]dto.PublicUser{
			"u2": {ID: "u2", DisplayName: "Asha"},
			"u3": {ID: "u3", DisplayName: "Ravi"},
		},
	}
}

func loadedInbox(t *testing.T, msg *fakeMessaging, rt Realtime) *Inbox {
	t.Helper()
	inbox := NewInbox(InboxConfig{UserID: "u1", Messaging: msg, Realtime: rt})
	require.NoError(t, inbox.Load(context.Background()))
	t.Cleanup(func() { _ = inbox.Close() })
	return inbox
}

func TestInboxLoadMergesConversationsUnreadAndPeers(t *testing.T) {
	msg := inboxFixture()
	inbox := loadedInbox(t, msg, nil)

	want := []InboxItem{
		{Conversation: msg.conversations[1], Peer: dto.PublicUser{ID: "u3", DisplayName: "Ravi"}, Unread: 2},
		{Conversation: msg.conversations[0], Peer: dto.PublicUser{ID: "u2", DisplayName: "Asha"}, Unread: 3},
		{Conversation: msg.conversations[2], Peer: dto.PublicUser{ID: "u2", DisplayName: "Asha"}, Unread: 0},
	}
	if diff := cmp.Diff(want, inbox.Items()); diff != "" {
		t.Fatalf("inbox items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, inbox.Total())
	// one fetch per distinct peer
	assert.Equal(t, 1, msg.userCalls["u2"])
	assert.Equal(t, 1, msg.userCalls["u3"])
}

func TestInboxLoadToleratesProfileFailure(t *testing.T) {
	msg := inboxFixture()
	msg.userErr = map[string]error{"u3": errBackend}
	inbox := loadedInbox(t, msg, nil)

	items := inbox.Items()
	require.Len(t, items, 3)
	assert.Equal(t, dto.PublicUser{ID: "u3"}, items[0].Peer)
	assert.Equal(t, "Asha", items[1].Peer.DisplayName)
}

func TestInboxOpenClearsBadgeOptimistically(t *testing.T) {
	msg := inboxFixture()
	inbox := loadedInbox(t, msg, nil)

	var unreadDuring, totalDuring int
	msg.markReadHook = func(string) error {
		unreadDuring = inbox.Unread("u1_u2_prod123")
		totalDuring = inbox.Total()
		return nil
	}

	require.NoError(t, inbox.Open(context.Background(), "u1_u2_prod123"))

	assert.Zero(t, unreadDuring)
	assert.Equal(t, 2, totalDuring)
	assert.Zero(t, inbox.Unread("u1_u2_prod123"))
	assert.Equal(t, 2, inbox.Total())
	status, ok := inbox.Mutation("u1_u2_prod123")
	require.True(t, ok)
	assert.Equal(t, Confirmed, status.State)
	assert.Equal(t, []string{"u1_u2_prod123"}, msg.markReadCalls)
}

func TestInboxOpenRollsBackOnFailure(t *testing.T) {
	msg := inboxFixture()
	msg.markReadHook = func(string) error { return errBackend }
	inbox := loadedInbox(t, msg, nil)

	err := inbox.Open(context.Background(), "u1_u2_prod123")

	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, 3, inbox.Unread("u1_u2_prod123"))
	assert.Equal(t, 5, inbox.Total())
	status, ok := inbox.Mutation("u1_u2_prod123")
	require.True(t, ok)
	assert.Equal(t, Failed, status.State)
	assert.ErrorIs(t, status.Err, errBackend)
}

// blockFirstMarkRead holds the first mark-read until release is closed and then
// fails it; later calls succeed straight away.
func blockFirstMarkRead(msg *fakeMessaging) (entered, release chan struct{}) {
	entered, release = make(chan struct{}), make(chan struct{})
	var calls atomic.Int32
	msg.markReadHook = func(string) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return errBackend
		}
		return nil
	}
	return entered, release
}

func TestInboxOverlappingOpenRollsBackTheFailedCall(t *testing.T) {
	ctx := context.Background()
	msg := inboxFixture()
	entered, release := blockFirstMarkRead(msg)
	inbox := loadedInbox(t, msg, nil)

	done := make(chan error, 1)
	go func() { done <- inbox.Open(ctx, "u1_u2_prod123") }()
	<-entered

	require.NoError(t, inbox.Open(ctx, "u1_u2_prod123"))
	close(release)
	require.ErrorIs(t, <-done, errBackend)

	assert.Equal(t, 3, inbox.Unread("u1_u2_prod123"))
	assert.Equal(t, 5, inbox.Total())
	status, ok := inbox.Mutation("u1_u2_prod123")
	require.True(t, ok)
	assert.Equal(t, Failed, status.State)
	assert.Len(t, msg.markReadCalls, 1)
}

func TestInboxStaleMarkReadFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	msg := inboxFixture()
	entered, release := blockFirstMarkRead(msg)
	inbox := loadedInbox(t, msg, nil)

	done := make(chan error, 1)
	go func() { done <- inbox.Open(ctx, "u1_u2_prod123") }()
	<-entered

	inbox.dispatch(unreadBumped{id: "u1_u2_prod123", message: dto.ChatMessage{
		SenderID: "u2", Text: "still available?", Timestamp: time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
	}})
	require.Equal(t, 1, inbox.Unread("u1_u2_prod123"))
	require.NoError(t, inbox.Open(ctx, "u1_u2_prod123"))

	close(release)
	require.ErrorIs(t, <-done, errBackend)

	// the newer call already cleared the thread on the server
	assert.Zero(t, inbox.Unread("u1_u2_prod123"))
	assert.Equal(t, 2, inbox.Total())
	status, ok := inbox.Mutation("u1_u2_prod123")
	require.True(t, ok)
	assert.Equal(t, Confirmed, status.State)
}

func TestInboxOpenEdgeCases(t *testing.T) {
	msg := inboxFixture()
	inbox := loadedInbox(t, msg, nil)

	require.ErrorIs(t, inbox.Open(context.Background(), "nope"), ErrUnknownThread)
	require.NoError(t, inbox.Open(context.Background(), "u1_u2_room4"))
	assert.Empty(t, msg.markReadCalls)
}

func TestInboxWatchBumpsUnreadFromPeerOnly(t *testing.T) {
	msg := inboxFixture()
	rt := newFakeRealtime()
	inbox := loadedInbox(t, msg, rt)
	require.NoError(t, inbox.Watch(context.Background()))

	channel := domainchat.PrivateChannel("u1_u2_room4")
	at := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	rt.Emit(channel, domainchat.EventNewMessage, dto.ChatMessage{ID: "x", SenderID: "u2", Text: "still free?", Timestamp: at})
	rt.Emit(channel, domainchat.EventNewMessage, dto.ChatMessage{ID: "y", SenderID: "u1", Text: "yes", Timestamp: at})

	items := inbox.Items()
	assert.Equal(t, "u1_u2_room4", items[0].Conversation.ID)
	assert.Equal(t, 1, items[0].Unread)
	assert.Equal(t, "still free?", items[0].Conversation.LastMessage)
	assert.Equal(t, 6, inbox.Total())
}

func TestInboxLoadRequiresUser(t *testing.T) {
	inbox := NewInbox(InboxConfig{Messaging: inboxFixture()})
	require.ErrorIs(t, inbox.Load(context.Background()), ErrLoginRequired)
}
