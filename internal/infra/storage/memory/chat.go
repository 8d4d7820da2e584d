package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "mujthriftz/internal/domain/chat"
	"mujthriftz/internal/domain/shared/events"
)

// ChatRepository keeps conversations, messages and unread counters in process.
type ChatRepository struct {
	mu            sync.RWMutex
	conversations map[domainchat.ConversationID]*domainchat.Conversation
	messages      map[domainchat.ConversationID][]*domainchat.Message
	unread        map[domainchat.UserID]map[domainchat.ConversationID]int
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		conversations: make(map[domainchat.ConversationID]*domainchat.Conversation),
		messages:      make(map[domainchat.ConversationID][]*domainchat.Message),
		unread:        make(map[domainchat.UserID]map[domainchat.ConversationID]int),
	}
}

func (r *ChatRepository) Conversation(_ context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (r *ChatRepository) CreateConversation(_ context.Context, conv *domainchat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conv.ID]; ok {
		return domainchat.ErrConversationExists
	}
	r.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

func (r *ChatRepository) SaveConversation(_ context.Context, conv *domainchat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conv.ID]; !ok {
		return domainchat.ErrConversationNotFound
	}
	r.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

func (r *ChatRepository) ConversationsFor(_ context.Context, user domainchat.UserID) ([]*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainchat.Conversation
	for _, conv := range r.conversations {
		if conv.HasParticipant(user) {
			out = append(out, cloneConversation(conv))
		}
	}
	domainchat.SortByActivity(out)
	return out, nil
}

func (r *ChatRepository) AppendMessage(_ context.Context, msg *domainchat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[msg.ConversationID]; !ok {
		return domainchat.ErrConversationNotFound
	}
	list := r.messages[msg.ConversationID]
	for _, existing := range list {
		if existing.ID == msg.ID {
			return nil
		}
	}
	stored := *msg
	idx := sort.Search(len(list), func(i int) bool { return list[i].Timestamp.After(stored.Timestamp) })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = &stored
	r.messages[msg.ConversationID] = list
	return nil
}

func (r *ChatRepository) Messages(_ context.Context, id domainchat.ConversationID) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.conversations[id]; !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	list := r.messages[id]
	out := make([]*domainchat.Message, 0, len(list))
	for _, msg := range list {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (r *ChatRepository) MarkMessagesRead(_ context.Context, id domainchat.ConversationID, reader domainchat.UserID, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := 0
	for _, msg := range r.messages[id] {
		if msg.ReceiverID != reader || msg.Status == domainchat.StatusRead {
			continue
		}
		if err := msg.MarkRead(); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (r *ChatRepository) IncrementUnread(_ context.Context, user domainchat.UserID, id domainchat.ConversationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	counters, ok := r.unread[user]
	if !ok {
		counters = make(map[domainchat.ConversationID]int)
		r.unread[user] = counters
	}
	counters[id]++
	return nil
}

func (r *ChatRepository) ResetUnread(_ context.Context, user domainchat.UserID, id domainchat.ConversationID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior := r.unread[user][id]
	if prior > 0 {
		delete(r.unread[user], id)
	}
	return prior, nil
}

func (r *ChatRepository) UnreadCounts(_ context.Context, user domainchat.UserID) (map[domainchat.ConversationID]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domainchat.ConversationID]int, len(r.unread[user]))
	for id, n := range r.unread[user] {
		out[id] = n
	}
	return out, nil
}

func cloneConversation(conv *domainchat.Conversation) *domainchat.Conversation {
	cp := *conv
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

var _ domainchat.Repository = (*ChatRepository)(nil)
