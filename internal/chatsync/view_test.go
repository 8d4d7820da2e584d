package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/dto"
	domainchat "mujthriftz/internal/domain/chat"
)

var viewNow = time.Date(2026, 3, 10, 15, 4, 5, 123456789, time.UTC)

func newTestView(t *testing.T, msg *fakeMessaging, rt *fakeRealtime, clock *fakeClock) *ChatView {
	t.Helper()
	view := NewChatView(ChatViewConfig{
		ConversationID: testConversation,
		CurrentUser:    "u1",
		ItemType:       "productListing",
		Messaging:      msg,
		Realtime:       rt,
		Clock:          clock,
		Location:       time.UTC,
	})
	t.Cleanup(func() { _ = view.Close() })
	return view
}

func privateChan() string {
	return domainchat.PrivateChannel(testConversation)
}

func presenceChan() string {
	return domainchat.PresenceChannel(testConversation)
}

func TestChatViewOpenLoadsHistoryAndSubscribes(t *testing.T) {
	msg := &fakeMessaging{history: []dto.ChatMessage{
		{ID: "m2", SenderID: "u2", ReceiverID: "u1", Text: "second", Timestamp: viewNow.Add(-time.Minute)},
		{ID: "m1", SenderID: "u1", ReceiverID: "u2", Text: "first", Timestamp: viewNow.Add(-2 * time.Minute)},
	}}
	rt := newFakeRealtime()
	view := newTestView(t, msg, rt, newFakeClock(viewNow))

	require.NoError(t, view.Open(context.Background()))

	assert.True(t, view.Loaded())
	entries := view.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "m1", entries[0].Message.ID)
	assert.Equal(t, "m2", entries[1].Message.ID)
	assert.True(t, rt.subscribed(privateChan()))
	assert.True(t, rt.subscribed(presenceChan()))

	require.NoError(t, view.Close())
	assert.False(t, rt.subscribed(privateChan()))
}

func TestChatViewOpenHistoryFailureLeavesViewUnloaded(t *testing.T) {
	msg := &fakeMessaging{historyErr: errBackend}
	view := newTestView(t, msg, newFakeRealtime(), newFakeClock(viewNow))

	err := view.Open(context.Background())

	require.ErrorIs(t, err, errBackend)
	assert.False(t, view.Loaded())
	assert.Empty(t, view.Entries())
}

func TestChatViewSubscriptionFailureStillLoadsHistory(t *testing.T) {
	msg := &fakeMessaging{history: []dto.ChatMessage{{ID: "m1", Timestamp: viewNow}}}
	rt := newFakeRealtime()
	rt.failOn[privateChan()] = true
	view := newTestView(t, msg, rt, newFakeClock(viewNow))

	require.NoError(t, view.Open(context.Background()))
	assert.True(t, view.Loaded())
	assert.Len(t, view.Entries(), 1)
	assert.True(t, rt.subscribed(presenceChan()))
}

func TestChatViewSendShowsPendingThenConfirmed(t *testing.T) {
	msg := &fakeMessaging{}
	view := newTestView(t, msg, newFakeRealtime(), newFakeClock(viewNow))
	require.NoError(t, view.Open(context.Background()))

	var during []Entry
	msg.sendHook = func(req SendRequest) (dto.ChatMessage, error) {
		during = view.Entries()
		return dto.ChatMessage{
			ID: "srv-1", ConversationID: req.ConversationID, SenderID: "u1", ReceiverID: "u2",
			Text: req.Text, Timestamp: req.Timestamp, Status: "sent",
		}, nil
	}

	require.NoError(t, view.Send(context.Background(), "  is this still available?  "))

	require.Len(t, during, 1)
	assert.Equal(t, Pending, during[0].State)
	assert.Equal(t, "is this still available?", during[0].Message.Text)

	entries := view.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Confirmed, entries[0].State)
	assert.Equal(t, "srv-1", entries[0].Message.ID)
	assert.Equal(t, 1, msg.sentCount())
	assert.Equal(t, viewNow.Truncate(time.Millisecond), msg.sent[0].Timestamp)
}

func TestChatViewSendFailureRemovesOptimisticEntry(t *testing.T) {
	msg := &fakeMessaging{
		history: []dto.ChatMessage{{ID: "m1", Text: "hi", Timestamp: viewNow.Add(-time.Hour)}},
	}
	msg.sendHook = func(SendRequest) (dto.ChatMessage, error) { return dto.ChatMessage{}, errBackend }
	view := newTestView(t, msg, newFakeRealtime(), newFakeClock(viewNow))
	require.NoError(t, view.Open(context.Background()))

	err := view.Send(context.Background(), "hello")

	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, msg.sentCount())
	entries := view.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "m1", entries[0].Message.ID)
}

func TestChatViewSendGuards(t *testing.T) {
	msg := &fakeMessaging{}
	anon := NewChatView(ChatViewConfig{ConversationID: testConversation, Messaging: msg, Clock: newFakeClock(viewNow)})
	require.ErrorIs(t, anon.Send(context.Background(), "hi"), ErrLoginRequired)

	view := newTestView(t, msg, newFakeRealtime(), newFakeClock(viewNow))
	require.NoError(t, view.Send(context.Background(), "   \n\t"))
	assert.Zero(t, msg.sentCount())
	assert.Empty(t, view.Entries())
}

func TestChatViewRealtimeEchoIsNotDuplicated(t *testing.T) {
	msg := &fakeMessaging{}
	rt := newFakeRealtime()
	view := newTestView(t, msg, rt, newFakeClock(viewNow))
	require.NoError(t, view.Open(context.Background()))

	// echo arrives before the POST returns
	msg.sendHook = func(req SendRequest) (dto.ChatMessage, error) {
		stored := dto.ChatMessage{
			ID: "srv-7", ConversationID: testConversation, SenderID: "u1", ReceiverID: "u2",
			Text: req.Text, Timestamp: req.Timestamp, Status: "sent",
		}
		rt.Emit(privateChan(), domainchat.EventNewMessage, stored)
		return stored, nil
	}
	require.NoError(t, view.Send(context.Background(), "ping"))

	// and once more afterwards
	rt.Emit(privateChan(), domainchat.EventNewMessage, view.Entries()[0].Message)

	entries := view.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "srv-7", entries[0].Message.ID)
	assert.Equal(t, Confirmed, entries[0].State)
}

func TestChatViewRealtimeMessagesMergeInOrder(t *testing.T) {
	msg := &fakeMessaging{history: []dto.ChatMessage{
		{ID: "m1", SenderID: "u1", ReceiverID: "u2", Timestamp: viewNow.Add(-time.Minute)},
	}}
	rt := newFakeRealtime()
	view := newTestView(t, msg, rt, newFakeClock(viewNow))
	require.NoError(t, view.Open(context.Background()))

	rt.Emit(privateChan(), domainchat.EventNewMessage, dto.ChatMessage{
		ID: "m0", ConversationID: testConversation, SenderID: "u2", ReceiverID: "u1", Timestamp: viewNow.Add(-2 * time.Minute),
	})
	rt.Emit(privateChan(), domainchat.EventNewMessage, dto.ChatMessage{
		ID: "m2", ConversationID: testConversation, SenderID: "u2", ReceiverID: "u1", Timestamp: viewNow,
	})
	rt.Emit(privateChan(), domainchat.EventNewMessage, dto.ChatMessage{
		ID: "other", ConversationID: "u1_u3_prod9", SenderID: "u3", Timestamp: viewNow,
	})

	var ids []string
	for _, e := range view.Entries() {
		ids = append(ids, e.Message.ID)
	}
	assert.Equal(t, []string{"m0", "m1", "m2"}, ids)
}

func TestChatViewReadReceiptMarksOwnMessages(t *testing.T) {
	msg := &fakeMessaging{history: []dto.ChatMessage{
		{ID: "m1", SenderID: "u1", ReceiverID: "u2", Status: "sent", Timestamp: viewNow.Add(-2 * time.Minute)},
		{ID: "m2", SenderID: "u2", ReceiverID: "u1", Status: "sent", Timestamp: viewNow.Add(-time.Minute)},
	}}
	rt := newFakeRealtime()
	view := newTestView(t, msg, rt, newFakeClock(viewNow))
	require.NoError(t, view.Open(context.Background()))

	rt.Emit(privateChan(), domainchat.EventMessagesRead, dto.ReadEvent{ConversationID: testConversation, ReaderID: "u2", Cleared: 1})

	entries := view.Entries()
	assert.Equal(t, "read", entries[0].Message.Status)
	assert.Equal(t, "sent", entries[1].Message.Status)
}

func TestChatViewTypingDebounce(t *testing.T) {
	msg := &fakeMessaging{}
	clock := newFakeClock(viewNow)
	view := newTestView(t, msg, newFakeRealtime(), clock)
	ctx := context.Background()

	view.Keystroke(ctx)
	clock.Advance(time.Second)
	view.Keystroke(ctx)
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, []bool{true}, msg.typingCalls())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, msg.typingCalls())

	clock.Advance(5 * time.Second)
	assert.Equal(t, []bool{true, false}, msg.typingCalls())
}

func TestChatViewSendStopsTyping(t *testing.T) {
	msg := &fakeMessaging{}
	clock := newFakeClock(viewNow)
	view := newTestView(t, msg, newFakeRealtime(), clock)
	ctx := context.Background()

	view.Keystroke(ctx)
	require.NoError(t, view.Send(ctx, "done"))
	clock.Advance(TypingIdleAfter)

	assert.Equal(t, []bool{true, false}, msg.typingCalls())
}

func TestChatViewRemoteTypingIndicator(t *testing.T) {
	clock := newFakeClock(viewNow)
	rt := newFakeRealtime()
	view := newTestView(t, &fakeMessaging{}, rt, clock)
	require.NoError(t, view.Open(context.Background()))

	rt.Emit(presenceChan(), domainchat.EventTyping, dto.TypingEvent{UserID: "u1", IsTyping: true})
	assert.Empty(t, view.PeersTyping())

	rt.Emit(presenceChan(), domainchat.EventTyping, dto.TypingEvent{UserID: "u2", IsTyping: true})
	assert.Equal(t, []string{"u2"}, view.PeersTyping())

	clock.Advance(2 * time.Second)
	rt.Emit(presenceChan(), domainchat.EventTyping, dto.TypingEvent{UserID: "u2", IsTyping: true})
	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"u2"}, view.PeersTyping())

	clock.Advance(time.Second)
	assert.Empty(t, view.PeersTyping())

	rt.Emit(presenceChan(), domainchat.EventTyping, dto.TypingEvent{UserID: "u2", IsTyping: true})
	rt.Emit(presenceChan(), domainchat.EventTyping, dto.TypingEvent{UserID: "u2", IsTyping: false})
	assert.Empty(t, view.PeersTyping())
}
