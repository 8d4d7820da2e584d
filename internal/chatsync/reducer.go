package chatsync

import (
	"sort"
	"time"

	"mujthriftz/internal/app/dto"
)

// MutationState tracks an optimistic change from the moment it is applied locally.
type MutationState string

const (
	Pending   MutationState = "pending"
	Confirmed MutationState = "confirmed"
	Failed    MutationState = "failed"
)

// Entry is one rendered message. LocalID is set for messages sent from this view.
type Entry struct {
	LocalID string
	Message dto.ChatMessage
	State   MutationState
}

type messageAction interface {
	applyTo(s *messageState)
}

type messageState struct {
	entries []Entry
	loaded  bool
}

type historyLoaded struct{ messages []dto.ChatMessage }

type sendStarted struct {
	localID string
	message dto.ChatMessage
}

type sendConfirmed struct {
	localID string
	message dto.ChatMessage
}

// sendFailed removes the optimistic entry; there is no retry.
type sendFailed struct{ localID string }

type remoteMessage struct{ message dto.ChatMessage }

type remoteRead struct{ readerID string }

func (a historyLoaded) applyTo(s *messageState) {
	entries := make([]Entry, 0, len(a.messages)+len(s.entries))
	for _, msg := range a.messages {
		entries = append(entries, Entry{Message: msg, State: Confirmed})
	}
	// live messages that raced the history fetch are kept unless history already has them
	for _, e := range s.entries {
		if indexOf(entries, e.Message) < 0 {
			entries = append(entries, e)
		}
	}
	sortEntries(entries)
	s.entries = entries
	s.loaded = true
}

func (a sendStarted) applyTo(s *messageState) {
	s.entries = append(s.entries, Entry{LocalID: a.localID, Message: a.message, State: Pending})
}

func (a sendConfirmed) applyTo(s *messageState) {
	idx := localIndex(s.entries, a.localID)
	if idx < 0 {
		return
	}
	// an echo may have slipped in under the server id before the POST returned
	if dup := indexOfID(s.entries, a.message.ID); dup >= 0 && dup != idx {
		s.entries = append(s.entries[:dup], s.entries[dup+1:]...)
		if dup < idx {
			idx--
		}
	}
	s.entries[idx].Message = a.message
	s.entries[idx].State = Confirmed
	sortEntries(s.entries)
}

func (a sendFailed) applyTo(s *messageState) {
	if idx := localIndex(s.entries, a.localID); idx >= 0 {
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	}
}

func (a remoteMessage) applyTo(s *messageState) {
	if indexOf(s.entries, a.message) >= 0 {
		return
	}
	s.entries = append(s.entries, Entry{Message: a.message, State: Confirmed})
	sortEntries(s.entries)
}

func (a remoteRead) applyTo(s *messageState) {
	for i := range s.entries {
		if s.entries[i].Message.ReceiverID == a.readerID && s.entries[i].State != Pending {
			s.entries[i].Message.Status = "read"
		}
	}
}

func reduceMessages(s messageState, a messageAction) messageState {
	next := messageState{entries: append([]Entry(nil), s.entries...), loaded: s.loaded}
	a.applyTo(&next)
	return next
}

// indexOf finds an entry that is the same message by id or by timestamp.
func indexOf(entries []Entry, msg dto.ChatMessage) int {
	for i, e := range entries {
		if msg.ID != "" && e.Message.ID == msg.ID {
			return i
		}
		if sameInstant(e.Message.Timestamp, msg.Timestamp) {
			return i
		}
	}
	return -1
}

func indexOfID(entries []Entry, id string) int {
	if id == "" {
		return -1
	}
	for i, e := range entries {
		if e.Message.ID == id {
			return i
		}
	}
	return -1
}

func localIndex(entries []Entry, localID string) int {
	for i, e := range entries {
		if e.LocalID == localID {
			return i
		}
	}
	return -1
}

// sameInstant compares at millisecond precision, the resolution every store keeps.
func sameInstant(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.UnixMilli() == b.UnixMilli()
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Message.Timestamp.Before(entries[j].Message.Timestamp)
	})
}

// Inbox reduction.

type InboxItem struct {
	Conversation dto.Conversation
	Peer         dto.PublicUser
	Unread       int
}

// readMutation is keyed by conversation; token ties it to the Open call that
// started it so a late answer from an older call cannot settle a newer one.
type readMutation struct {
	token uint64
	prior int
	state MutationState
	err   error
}

type inboxState struct {
	items     []InboxItem
	total     int
	mutations map[string]readMutation
	loaded    bool
}

type inboxAction interface {
	applyTo(s *inboxState)
}

type inboxLoaded struct {
	items []InboxItem
	total int
}

type markReadStarted struct {
	id    string
	token uint64
}

type markReadConfirmed struct {
	id    string
	token uint64
}

type markReadFailed struct {
	id    string
	token uint64
	err   error
}

type unreadBumped struct {
	id      string
	message dto.ChatMessage
}

func (a inboxLoaded) applyTo(s *inboxState) {
	s.items = append([]InboxItem(nil), a.items...)
	s.total = a.total
	s.loaded = true
}

func (a markReadStarted) applyTo(s *inboxState) {
	idx := inboxIndex(s.items, a.id)
	if idx < 0 || s.items[idx].Unread == 0 {
		return
	}
	prior := s.items[idx].Unread
	s.items[idx].Unread = 0
	s.total -= prior
	if s.total < 0 {
		s.total = 0
	}
	s.mutations[a.id] = readMutation{token: a.token, prior: prior, state: Pending}
}

func (a markReadConfirmed) applyTo(s *inboxState) {
	m, ok := s.mutations[a.id]
	if !ok || m.token != a.token || m.state != Pending {
		return
	}
	m.state = Confirmed
	s.mutations[a.id] = m
}

// markReadFailed restores exactly what markReadStarted removed.
func (a markReadFailed) applyTo(s *inboxState) {
	m, ok := s.mutations[a.id]
	if !ok || m.token != a.token || m.state != Pending {
		return
	}
	if idx := inboxIndex(s.items, a.id); idx >= 0 {
		s.items[idx].Unread += m.prior
		s.total += m.prior
	}
	m.state = Failed
	m.err = a.err
	s.mutations[a.id] = m
}

func (a unreadBumped) applyTo(s *inboxState) {
	idx := inboxIndex(s.items, a.id)
	if idx < 0 {
		return
	}
	item := s.items[idx]
	item.Unread++
	item.Conversation.LastMessage = a.message.Text
	item.Conversation.LastSender = a.message.SenderID
	if a.message.Timestamp.After(item.Conversation.UpdatedAt) {
		item.Conversation.UpdatedAt = a.message.Timestamp
	}
	s.total++
	// newest activity first
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.items = append([]InboxItem{item}, s.items...)
}

func reduceInbox(s inboxState, a inboxAction) inboxState {
	next := inboxState{
		items:     append([]InboxItem(nil), s.items...),
		total:     s.total,
		mutations: make(map[string]readMutation, len(s.mutations)),
		loaded:    s.loaded,
	}
	for k, v := range s.mutations {
		next.mutations[k] = v
	}
	a.applyTo(&next)
	return next
}

func inboxIndex(items []InboxItem, id string) int {
	for i, item := range items {
		if item.Conversation.ID == id {
			return i
		}
	}
	return -1
}
