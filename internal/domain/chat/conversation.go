package chat

import (
	"errors"
	"sort"
	"strings"
	"time"

	"mujthriftz/internal/domain/shared/events"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrConversationExists   = errors.New("chat: conversation already exists")
	ErrParticipantsRequired = errors.New("chat: two distinct participants are required")
	ErrItemRequired         = errors.New("chat: item id is required")
	ErrNotParticipant       = errors.New("chat: user is not a conversation participant")
	ErrTextRequired         = errors.New("chat: message text is required")
	ErrTextTooLong          = errors.New("chat: message text too long")
	ErrMessageNotFound      = errors.New("chat: message not found")
	ErrInvalidStatus        = errors.New("chat: invalid status transition")
)

// MaxTextLength bounds a single message body, in runes.
const MaxTextLength = 4000

const snippetLength = 200

type ConversationID string

type UserID string

// Conversation is a two-party thread scoped to one catalog item.
type Conversation struct {
	ID           ConversationID
	Participants [2]UserID
	ItemID       string
	ItemType     string
	LastMessage  string
	LastSender   UserID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	events.EventRecorder
}

// DeriveConversationID builds the deterministic id of the thread between a and b about item:
// the two participant ids sorted ascending, then the item id, joined with underscores.
func DeriveConversationID(a, b UserID, itemID string) (ConversationID, error) {
	pair, err := sortedPair(a, b)
	if err != nil {
		return "", err
	}
	item := strings.TrimSpace(itemID)
	if item == "" {
		return "", ErrItemRequired
	}
	return ConversationID(string(pair[0]) + "_" + string(pair[1]) + "_" + item), nil
}

type StartParams struct {
	Initiator UserID
	Peer      UserID
	ItemID    string
	ItemType  string
	Now       time.Time
}

// NewConversation creates a thread; the id is always derived from the participants and item.
func NewConversation(params StartParams) (*Conversation, error) {
	pair, err := sortedPair(params.Initiator, params.Peer)
	if err != nil {
		return nil, err
	}
	id, err := DeriveConversationID(pair[0], pair[1], params.ItemID)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	conv := &Conversation{
		ID:           id,
		Participants: pair,
		ItemID:       strings.TrimSpace(params.ItemID),
		ItemType:     strings.TrimSpace(params.ItemType),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	conv.Record(ConversationStartedEvent{
		ConversationID: conv.ID,
		Initiator:      UserID(strings.TrimSpace(string(params.Initiator))),
		ItemID:         conv.ItemID,
		At:             now,
	})
	return conv, nil
}

// HasParticipant reports whether user takes part in the conversation.
func (c *Conversation) HasParticipant(user UserID) bool {
	return c.Participants[0] == user || c.Participants[1] == user
}

// Counterpart returns the other participant.
func (c *Conversation) Counterpart(user UserID) (UserID, error) {
	switch user {
	case c.Participants[0]:
		return c.Participants[1], nil
	case c.Participants[1]:
		return c.Participants[0], nil
	default:
		return "", ErrNotParticipant
	}
}

// Touch applies a freshly stored message to the conversation summary. Messages older
// than the current summary leave it unchanged.
func (c *Conversation) Touch(msg *Message) {
	if msg == nil {
		return
	}
	if c.LastMessage != "" && msg.Timestamp.Before(c.UpdatedAt) {
		return
	}
	c.LastMessage = snippet(msg.Text, snippetLength)
	c.LastSender = msg.SenderID
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
}

// LastActivity is the ordering key used by inbox listings.
func (c *Conversation) LastActivity() time.Time {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// SortByActivity orders conversations newest activity first, breaking ties by id.
func SortByActivity(items []*Conversation) {
	sort.SliceStable(items, func(i, j int) bool {
		ai, aj := items[i].LastActivity(), items[j].LastActivity()
		if ai.Equal(aj) {
			return items[i].ID < items[j].ID
		}
		return ai.After(aj)
	})
}

func sortedPair(a, b UserID) ([2]UserID, error) {
	x := UserID(strings.TrimSpace(string(a)))
	y := UserID(strings.TrimSpace(string(b)))
	if x == "" || y == "" || x == y {
		return [2]UserID{}, ErrParticipantsRequired
	}
	if y < x {
		x, y = y, x
	}
	return [2]UserID{x, y}, nil
}

func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
