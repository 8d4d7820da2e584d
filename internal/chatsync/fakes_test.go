package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"mujthriftz/internal/app/dto"
)

const testConversation = "u1_u2_prod123"

var errBackend = errors.New("backend unavailable")

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every timer that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeMessaging struct {
	mu sync.Mutex

	history    []dto.ChatMessage
	historyErr error

	sendHook func(req SendRequest) (dto.ChatMessage, error)
	sent     []SendRequest

	typing []bool

	markReadHook  func(conversationID string) error
	markReadCalls []string

	conversations []dto.Conversation
	unread        dto.UnreadCounts
	users         map[string]dto.PublicUser
	userErr       map[string]error
	userCalls     map[string]int
}

func (f *fakeMessaging) Messages(context.Context, string) ([]dto.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]dto.ChatMessage(nil), f.history...), nil
}

func (f *fakeMessaging) Send(_ context.Context, req SendRequest) (dto.ChatMessage, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	hook := f.sendHook
	f.mu.Unlock()
	if hook != nil {
		return hook(req)
	}
	return dto.ChatMessage{
		ID:             "srv-" + req.Timestamp.Format("150405.000"),
		ConversationID: req.ConversationID,
		SenderID:       "u1",
		ReceiverID:     "u2",
		Text:           req.Text,
		Timestamp:      req.Timestamp,
		Status:         "sent",
	}, nil
}

func (f *fakeMessaging) Typing(_ context.Context, _ string, isTyping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, isTyping)
	return nil
}

func (f *fakeMessaging) MarkRead(_ context.Context, conversationID string) (dto.MarkReadResult, error) {
	f.mu.Lock()
	f.markReadCalls = append(f.markReadCalls, conversationID)
	hook := f.markReadHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(conversationID); err != nil {
			return dto.MarkReadResult{}, err
		}
	}
	return dto.MarkReadResult{ConversationID: conversationID}, nil
}

func (f *fakeMessaging) Conversations(context.Context, string) ([]dto.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.Conversation(nil), f.conversations...), nil
}

func (f *fakeMessaging) UnreadCounts(context.Context, string) (dto.UnreadCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

func (f *fakeMessaging) User(_ context.Context, userID string) (dto.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userCalls == nil {
		f.userCalls = make(map[string]int)
	}
	f.userCalls[userID]++
	if err := f.userErr[userID]; err != nil {
		return dto.PublicUser{}, err
	}
	return f.users[userID], nil
}

func (f *fakeMessaging) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMessaging) typingCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.typing...)
}

type fakeRealtime struct {
	mu       sync.Mutex
	handlers map[string]EventHandler
	failOn   map[string]bool
}

type fakeSubscription struct {
	rt      *fakeRealtime
	channel string
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{handlers: make(map[string]EventHandler), failOn: make(map[string]bool)}
}

func (r *fakeRealtime) Subscribe(_ context.Context, channel string, handler EventHandler) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[channel] {
		return nil, errBackend
	}
	r.handlers[channel] = handler
	return fakeSubscription{rt: r, channel: channel}, nil
}

func (s fakeSubscription) Unsubscribe() error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	delete(s.rt.handlers, s.channel)
	return nil
}

func (r *fakeRealtime) subscribed(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[channel]
	return ok
}

// Emit delivers an event synchronously, the way a client read loop would.
func (r *fakeRealtime) Emit(channel, event string, payload any) {
	r.mu.Lock()
	handler := r.handlers[channel]
	r.mu.Unlock()
	if handler == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	handler(event, raw)
}
