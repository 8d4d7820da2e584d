package scylla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	domainchat "mujthriftz/internal/domain/chat"
)

var errNoSession = errors.New("scylla: session not initialized")

const conversationColumns = `id, participants, item_id, item_type, last_message, last_sender, created_at, updated_at`

const messageColumns = `conversation_id, sent_at, message_id, sender_id, receiver_id, body, status, item_type`

// ChatStore implements the chat repository on Scylla. Unread counters are counter
// columns, so concurrent increments never overwrite each other.
type ChatStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewChatStore(session *gocql.Session, logger *slog.Logger) *ChatStore {
	return &ChatStore{session: session, logger: logger}
}

func (s *ChatStore) Conversation(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	var row conversationRow
	err := s.session.
		Query(`SELECT `+conversationColumns+` FROM conversations WHERE id = ? LIMIT 1`, string(id)).
		WithContext(ctx).
		Scan(row.dest()...)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, domainchat.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scylla: load conversation %s: %w", id, err)
	}
	return row.domain(), nil
}

// CreateConversation relies on a lightweight transaction so only one of two racing
// creators wins.
func (s *ChatStore) CreateConversation(ctx context.Context, conv *domainchat.Conversation) error {
	if s.session == nil {
		return errNoSession
	}
	participants := []string{string(conv.Participants[0]), string(conv.Participants[1])}
	applied, err := s.session.
		Query(`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
			string(conv.ID), participants, conv.ItemID, conv.ItemType, conv.LastMessage, string(conv.LastSender), conv.CreatedAt, conv.UpdatedAt).
		WithContext(ctx).
		SerialConsistency(gocql.LocalSerial).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("scylla: create conversation %s: %w", conv.ID, err)
	}
	if !applied {
		return domainchat.ErrConversationExists
	}
	batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, user := range participants {
		batch.Query(`INSERT INTO conversations_by_user (user_id, conversation_id) VALUES (?, ?)`, user, string(conv.ID))
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("scylla: index conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *ChatStore) SaveConversation(ctx context.Context, conv *domainchat.Conversation) error {
	if s.session == nil {
		return errNoSession
	}
	if err := s.session.
		Query(`UPDATE conversations SET item_type = ?, last_message = ?, last_sender = ?, updated_at = ? WHERE id = ?`,
			conv.ItemType, conv.LastMessage, string(conv.LastSender), conv.UpdatedAt, string(conv.ID)).
		WithContext(ctx).
		Exec(); err != nil {
		return fmt.Errorf("scylla: save conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *ChatStore) ConversationsFor(ctx context.Context, user domainchat.UserID) ([]*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	iter := s.session.
		Query(`SELECT conversation_id FROM conversations_by_user WHERE user_id = ?`, string(user)).
		WithContext(ctx).
		Iter()
	var (
		ids []string
		id  string
	)
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: list conversations of %s: %w", user, err)
	}
	if len(ids) == 0 {
		return []*domainchat.Conversation{}, nil
	}

	rows := s.session.
		Query(`SELECT `+conversationColumns+` FROM conversations WHERE id IN ?`, ids).
		WithContext(ctx).
		Iter()
	out := make([]*domainchat.Conversation, 0, len(ids))
	var row conversationRow
	for rows.Scan(row.dest()...) {
		out = append(out, row.domain())
		row = conversationRow{}
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("scylla: load conversations of %s: %w", user, err)
	}
	domainchat.SortByActivity(out)
	return out, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg *domainchat.Message) error {
	if s.session == nil {
		return errNoSession
	}
	if err := s.session.
		Query(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(msg.ConversationID), msg.Timestamp, string(msg.ID), string(msg.SenderID), string(msg.ReceiverID), msg.Text, string(msg.Status), msg.ItemType).
		WithContext(ctx).
		Exec(); err != nil {
		return fmt.Errorf("scylla: append message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *ChatStore) Messages(ctx context.Context, id domainchat.ConversationID) ([]*domainchat.Message, error) {
	if _, err := s.Conversation(ctx, id); err != nil {
		return nil, err
	}
	return s.messages(ctx, id)
}

func (s *ChatStore) messages(ctx context.Context, id domainchat.ConversationID) ([]*domainchat.Message, error) {
	iter := s.session.
		Query(`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ?`, string(id)).
		WithContext(ctx).
		Iter()
	out := make([]*domainchat.Message, 0)
	var row messageRow
	for iter.Scan(row.dest()...) {
		out = append(out, row.domain())
		row = messageRow{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: list messages of %s: %w", id, err)
	}
	return out, nil
}

func (s *ChatStore) MarkMessagesRead(ctx context.Context, id domainchat.ConversationID, reader domainchat.UserID, _ time.Time) (int, error) {
	if s.session == nil {
		return 0, errNoSession
	}
	history, err := s.messages(ctx, id)
	if err != nil {
		return 0, err
	}
	batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, msg := range history {
		if msg.ReceiverID != reader || msg.Status != domainchat.StatusSent {
			continue
		}
		batch.Query(`UPDATE messages SET status = ? WHERE conversation_id = ? AND sent_at = ? AND message_id = ?`,
			string(domainchat.StatusRead), string(id), msg.Timestamp, string(msg.ID))
	}
	changed := batch.Size()
	if changed == 0 {
		return 0, nil
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return 0, fmt.Errorf("scylla: mark read %s: %w", id, err)
	}
	return changed, nil
}

func (s *ChatStore) IncrementUnread(ctx context.Context, user domainchat.UserID, id domainchat.ConversationID) error {
	if s.session == nil {
		return errNoSession
	}
	if err := s.session.
		Query(`UPDATE unread_counts SET unread = unread + 1 WHERE user_id = ? AND conversation_id = ?`, string(user), string(id)).
		WithContext(ctx).
		Exec(); err != nil {
		return fmt.Errorf("scylla: bump unread: %w", err)
	}
	return nil
}

// ResetUnread subtracts the value it read, so increments landing in between survive.
func (s *ChatStore) ResetUnread(ctx context.Context, user domainchat.UserID, id domainchat.ConversationID) (int, error) {
	if s.session == nil {
		return 0, errNoSession
	}
	var current int64
	err := s.session.
		Query(`SELECT unread FROM unread_counts WHERE user_id = ? AND conversation_id = ?`, string(user), string(id)).
		WithContext(ctx).
		Scan(&current)
	if errors.Is(err, gocql.ErrNotFound) || (err == nil && current <= 0) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scylla: read unread: %w", err)
	}
	if err := s.session.
		Query(`UPDATE unread_counts SET unread = unread - ? WHERE user_id = ? AND conversation_id = ?`, current, string(user), string(id)).
		WithContext(ctx).
		Exec(); err != nil {
		return 0, fmt.Errorf("scylla: reset unread: %w", err)
	}
	return int(current), nil
}

func (s *ChatStore) UnreadCounts(ctx context.Context, user domainchat.UserID) (map[domainchat.ConversationID]int, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	iter := s.session.
		Query(`SELECT conversation_id, unread FROM unread_counts WHERE user_id = ?`, string(user)).
		WithContext(ctx).
		Iter()
	out := make(map[domainchat.ConversationID]int)
	var (
		id    string
		count int64
	)
	for iter.Scan(&id, &count) {
		if count > 0 {
			out[domainchat.ConversationID(id)] = int(count)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: unread counts of %s: %w", user, err)
	}
	return out, nil
}

type conversationRow struct {
	id           string
	participants []string
	itemID       string
	itemType     string
	lastMessage  string
	lastSender   string
	createdAt    time.Time
	updatedAt    time.Time
}

func (r *conversationRow) dest() []interface{} {
	return []interface{}{&r.id, &r.participants, &r.itemID, &r.itemType, &r.lastMessage, &r.lastSender, &r.createdAt, &r.updatedAt}
}

func (r *conversationRow) domain() *domainchat.Conversation {
	conv := &domainchat.Conversation{
		ID:          domainchat.ConversationID(r.id),
		ItemID:      r.itemID,
		ItemType:    r.itemType,
		LastMessage: r.lastMessage,
		LastSender:  domainchat.UserID(r.lastSender),
		CreatedAt:   r.createdAt.UTC(),
		UpdatedAt:   r.updatedAt.UTC(),
	}
	for i := 0; i < len(r.participants) && i < 2; i++ {
		conv.Participants[i] = domainchat.UserID(r.participants[i])
	}
	return conv
}

type messageRow struct {
	conversationID string
	sentAt         time.Time
	id             string
	senderID       string
	receiverID     string
	body           string
	status         string
	itemType       string
}

func (r *messageRow) dest() []interface{} {
	return []interface{}{&r.conversationID, &r.sentAt, &r.id, &r.senderID, &r.receiverID, &r.body, &r.status, &r.itemType}
}

func (r *messageRow) domain() *domainchat.Message {
	return &domainchat.Message{
		ID:             domainchat.MessageID(r.id),
		ConversationID: domainchat.ConversationID(r.conversationID),
		SenderID:       domainchat.UserID(r.senderID),
		ReceiverID:     domainchat.UserID(r.receiverID),
		Text:           r.body,
		Timestamp:      r.sentAt.UTC(),
		Status:         domainchat.Status(r.status),
		ItemType:       r.itemType,
	}
}

var _ domainchat.Repository = (*ChatStore)(nil)
