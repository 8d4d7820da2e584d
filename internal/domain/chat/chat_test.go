package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

func TestDeriveConversationIDIsOrderIndependent(t *testing.T) {
	ab, err := DeriveConversationID("bob", "alice", " item9 ")
	require.NoError(t, err)
	ba, err := DeriveConversationID("alice", "bob", "item9")
	require.NoError(t, err)
	assert.Equal(t, ConversationID("alice_bob_item9"), ab)
	assert.Equal(t, ab, ba)

	_, err = DeriveConversationID("alice", "alice", "item9")
	assert.ErrorIs(t, err, ErrParticipantsRequired)
	_, err = DeriveConversationID("alice", "bob", "  ")
	assert.ErrorIs(t, err, ErrItemRequired)
}

func TestNewConversationRecordsStart(t *testing.T) {
	conv, err := NewConversation(StartParams{Initiator: "zed", Peer: "amy", ItemID: "x", ItemType: "requestProduct", Now: now})
	require.NoError(t, err)
	assert.Equal(t, [2]UserID{"amy", "zed"}, conv.Participants)
	assert.True(t, conv.HasParticipant("zed"))
	assert.False(t, conv.HasParticipant("bob"))

	events := conv.PendingEvents()
	require.Len(t, events, 1)
	started, ok := events[0].(ConversationStartedEvent)
	require.True(t, ok)
	assert.Equal(t, UserID("zed"), started.Initiator)
}

func TestNewMessageAddressesCounterpart(t *testing.T) {
	conv, err := NewConversation(StartParams{Initiator: "a", Peer: "b", ItemID: "x", ItemType: "productListing", Now: now})
	require.NoError(t, err)

	msg, err := NewMessage(NewMessageParams{ID: "m1", Conversation: conv, SenderID: "b", Text: "  hi  ", Timestamp: now})
	require.NoError(t, err)
	assert.Equal(t, UserID("a"), msg.ReceiverID)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, StatusSent, msg.Status)
	assert.Equal(t, "productListing", msg.ItemType, "inherits the conversation item type")

	_, err = NewMessage(NewMessageParams{Conversation: conv, SenderID: "c", Text: "hi"})
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = NewMessage(NewMessageParams{Conversation: conv, SenderID: "a", Text: " \n "})
	assert.ErrorIs(t, err, ErrTextRequired)
	_, err = NewMessage(NewMessageParams{Conversation: conv, SenderID: "a", Text: strings.Repeat("é", MaxTextLength+1)})
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestMessageMarkReadIsIdempotent(t *testing.T) {
	m := &Message{Status: StatusSent}
	require.NoError(t, m.MarkRead())
	require.NoError(t, m.MarkRead())
	assert.Equal(t, StatusRead, m.Status)

	bogus := &Message{Status: "deleted"}
	assert.ErrorIs(t, bogus.MarkRead(), ErrInvalidStatus)
}

func TestTouchIgnoresOlderMessages(t *testing.T) {
	conv, err := NewConversation(StartParams{Initiator: "a", Peer: "b", ItemID: "x", Now: now})
	require.NoError(t, err)

	conv.Touch(&Message{SenderID: "a", Text: "second", Timestamp: now.Add(2 * time.Minute)})
	conv.Touch(&Message{SenderID: "b", Text: "late arrival", Timestamp: now.Add(time.Minute)})
	assert.Equal(t, "second", conv.LastMessage)
	assert.Equal(t, UserID("a"), conv.LastSender)
	assert.Equal(t, now.Add(2*time.Minute), conv.LastActivity())

	conv.Touch(&Message{SenderID: "b", Text: strings.Repeat("x", 500), Timestamp: now.Add(3 * time.Minute)})
	assert.Len(t, conv.LastMessage, snippetLength)
}

func TestSortByActivity(t *testing.T) {
	items := []*Conversation{
		{ID: "b", CreatedAt: now},
		{ID: "c", CreatedAt: now, UpdatedAt: now.Add(time.Hour)},
		{ID: "a", CreatedAt: now},
	}
	SortByActivity(items)
	assert.Equal(t, ConversationID("c"), items[0].ID)
	assert.Equal(t, ConversationID("a"), items[1].ID)
	assert.Equal(t, ConversationID("b"), items[2].ID)
}

func TestClampTimestamp(t *testing.T) {
	skew := 5 * time.Minute
	assert.Equal(t, now, ClampTimestamp(time.Time{}, now, skew))
	assert.Equal(t, now.Add(-time.Minute), ClampTimestamp(now.Add(-time.Minute), now, skew))
	assert.Equal(t, now, ClampTimestamp(now.Add(time.Hour), now, skew))
	assert.Equal(t, now, ClampTimestamp(now.Add(-time.Hour), now, skew))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "private-chat-a_b_x", PrivateChannel("a_b_x"))
	assert.Equal(t, "presence-chat-a_b_x", PresenceChannel("a_b_x"))

	id, ok := ConversationFromChannel("presence-chat-a_b_x")
	assert.True(t, ok)
	assert.Equal(t, ConversationID("a_b_x"), id)

	_, ok = ConversationFromChannel("private-chat-")
	assert.False(t, ok)
	_, ok = ConversationFromChannel("user-42")
	assert.False(t, ok)
}
