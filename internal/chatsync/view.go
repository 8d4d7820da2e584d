package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"mujthriftz/internal/app/dto"
	domainchat "mujthriftz/internal/domain/chat"
)

const (
	// TypingIdleAfter is the pause after the last keystroke before typing=false is announced.
	TypingIdleAfter = 2 * time.Second
	// RemoteTypingTimeout clears a peer's indicator when no typing event arrives in time.
	RemoteTypingTimeout = 3 * time.Second

	announceTimeout = 5 * time.Second
)

type ChatViewConfig struct {
	ConversationID string
	// CurrentUser is empty for anonymous viewers, who can read but not send.
	CurrentUser string
	ItemType    string
	Messaging   Messaging
	Realtime    Realtime
	Clock       Clock
	Location    *time.Location
	Logger      *slog.Logger
	// OnChange is called after every state change, outside the view's lock.
	OnChange func()
}

// ChatView is one open conversation: history, live events, optimistic sends and typing state.
type ChatView struct {
	cfg   ChatViewConfig
	clock Clock

	mu       sync.Mutex
	state    messageState
	subs     []Subscription
	baseCtx  context.Context
	cancel   context.CancelFunc
	nextLink int

	typing    bool
	typingGen int
	debounce  Timer
	remote    map[string]Timer
	remoteGen map[string]int
}

func NewChatView(cfg ChatViewConfig) *ChatView {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &ChatView{
		cfg:       cfg,
		clock:     clock,
		remote:    make(map[string]Timer),
		remoteGen: make(map[string]int),
	}
}

// Open fetches history once and subscribes to the conversation's channels. A failed
// history fetch is returned and leaves the view empty and not loaded. Subscription
// failures are logged; the view then simply gets no live updates.
func (v *ChatView) Open(ctx context.Context) error {
	if v.cfg.Messaging == nil {
		return errors.New("chatsync: messaging client required")
	}
	v.mu.Lock()
	if v.baseCtx == nil {
		v.baseCtx, v.cancel = context.WithCancel(context.Background())
	}
	v.mu.Unlock()

	v.subscribe(ctx)

	history, err := v.cfg.Messaging.Messages(ctx, v.cfg.ConversationID)
	if err != nil {
		v.log("history fetch failed", "error", err)
		return err
	}
	v.dispatch(historyLoaded{messages: history})
	return nil
}

func (v *ChatView) subscribe(ctx context.Context) {
	if v.cfg.Realtime == nil {
		return
	}
	id := domainchat.ConversationID(v.cfg.ConversationID)
	channels := []struct {
		name    string
		handler EventHandler
	}{
		{domainchat.PrivateChannel(id), v.onPrivateEvent},
		{domainchat.PresenceChannel(id), v.onPresenceEvent},
	}
	for _, ch := range channels {
		sub, err := v.cfg.Realtime.Subscribe(ctx, ch.name, ch.handler)
		if err != nil {
			v.log("realtime subscribe failed", "channel", ch.name, "error", err)
			continue
		}
		v.mu.Lock()
		v.subs = append(v.subs, sub)
		v.mu.Unlock()
	}
}

// Close drops subscriptions and stops timers. A pending typing=false is not sent.
func (v *ChatView) Close() error {
	v.mu.Lock()
	subs := v.subs
	v.subs = nil
	if v.debounce != nil {
		v.debounce.Stop()
		v.debounce = nil
	}
	for user, t := range v.remote {
		t.Stop()
		delete(v.remote, user)
	}
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send appends an optimistic entry and issues exactly one POST. On failure the
// entry is removed and the error returned. Blank text is ignored.
func (v *ChatView) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(v.cfg.CurrentUser) == "" {
		return ErrLoginRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// millisecond precision so echoes match after any store round trip
	ts := v.clock.Now().UTC().Truncate(time.Millisecond)

	v.mu.Lock()
	v.nextLink++
	localID := "local-" + strconv.Itoa(v.nextLink)
	v.mu.Unlock()

	v.dispatch(sendStarted{localID: localID, message: dto.ChatMessage{
		ConversationID: v.cfg.ConversationID,
		SenderID:       v.cfg.CurrentUser,
		Text:           text,
		Timestamp:      ts,
		Status:         string(domainchat.StatusSent),
		ItemType:       v.cfg.ItemType,
	}})

	stored, err := v.cfg.Messaging.Send(ctx, SendRequest{
		ConversationID: v.cfg.ConversationID,
		Text:           text,
		Timestamp:      ts,
		ItemType:       v.cfg.ItemType,
	})
	if err != nil {
		v.dispatch(sendFailed{localID: localID})
		return err
	}
	v.dispatch(sendConfirmed{localID: localID, message: stored})
	v.stopTyping(ctx)
	return nil
}

// Entries returns a snapshot of rendered messages in ascending timestamp order.
func (v *ChatView) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Entry(nil), v.state.entries...)
}

func (v *ChatView) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.loaded
}

// Groups renders the current entries by calendar day relative to now.
func (v *ChatView) Groups(now time.Time) []DayGroup {
	return GroupByDay(v.Entries(), now, v.cfg.Location)
}

// Keystroke announces typing=true on the first key and re-arms the idle timer on every key.
func (v *ChatView) Keystroke(ctx context.Context) {
	if v.cfg.CurrentUser == "" {
		return
	}
	v.mu.Lock()
	wasTyping := v.typing
	v.typing = true
	v.typingGen++
	gen := v.typingGen
	if v.debounce != nil {
		v.debounce.Stop()
	}
	v.debounce = v.clock.AfterFunc(TypingIdleAfter, func() { v.typingIdle(gen) })
	v.mu.Unlock()

	if !wasTyping {
		v.announce(ctx, true)
	}
}

// PeersTyping lists other participants whose typing indicator is on.
func (v *ChatView) PeersTyping() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.remote))
	for user := range v.remote {
		out = append(out, user)
	}
	return out
}

func (v *ChatView) typingIdle(gen int) {
	v.mu.Lock()
	if gen != v.typingGen || !v.typing {
		v.mu.Unlock()
		return
	}
	v.typing = false
	v.debounce = nil
	ctx := v.baseCtx
	v.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	v.announce(ctx, false)
}

func (v *ChatView) stopTyping(ctx context.Context) {
	v.mu.Lock()
	if !v.typing {
		v.mu.Unlock()
		return
	}
	v.typing = false
	v.typingGen++
	if v.debounce != nil {
		v.debounce.Stop()
		v.debounce = nil
	}
	v.mu.Unlock()
	v.announce(ctx, false)
}

func (v *ChatView) announce(ctx context.Context, isTyping bool) {
	ctx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	if err := v.cfg.Messaging.Typing(ctx, v.cfg.ConversationID, isTyping); err != nil {
		v.log("typing announce failed", "typing", isTyping, "error", err)
	}
}

func (v *ChatView) onPrivateEvent(event string, data json.RawMessage) {
	switch event {
	case domainchat.EventNewMessage:
		var msg dto.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			v.log("bad new-message payload", "error", err)
			return
		}
		if msg.ConversationID != "" && msg.ConversationID != v.cfg.ConversationID {
			return
		}
		v.dispatch(remoteMessage{message: msg})
		if msg.SenderID != v.cfg.CurrentUser {
			v.clearRemote(msg.SenderID)
		}
	case domainchat.EventMessagesRead:
		var ev dto.ReadEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			v.log("bad messages-read payload", "error", err)
			return
		}
		if ev.ReaderID != v.cfg.CurrentUser {
			v.dispatch(remoteRead{readerID: ev.ReaderID})
		}
	}
}

func (v *ChatView) onPresenceEvent(event string, data json.RawMessage) {
	if event != domainchat.EventTyping {
		return
	}
	var ev dto.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		v.log("bad typing payload", "error", err)
		return
	}
	if ev.UserID == "" || ev.UserID == v.cfg.CurrentUser {
		return
	}
	if !ev.IsTyping {
		v.clearRemote(ev.UserID)
		return
	}
	v.mu.Lock()
	if t, ok := v.remote[ev.UserID]; ok && t != nil {
		t.Stop()
	}
	v.remoteGen[ev.UserID]++
	gen := v.remoteGen[ev.UserID]
	user := ev.UserID
	v.remote[user] = v.clock.AfterFunc(RemoteTypingTimeout, func() { v.expireRemote(user, gen) })
	v.mu.Unlock()
	v.changed()
}

func (v *ChatView) expireRemote(user string, gen int) {
	v.mu.Lock()
	if v.remoteGen[user] != gen {
		v.mu.Unlock()
		return
	}
	delete(v.remote, user)
	v.mu.Unlock()
	v.changed()
}

func (v *ChatView) clearRemote(user string) {
	v.mu.Lock()
	t, ok := v.remote[user]
	if ok {
		if t != nil {
			t.Stop()
		}
		delete(v.remote, user)
		v.remoteGen[user]++
	}
	v.mu.Unlock()
	if ok {
		v.changed()
	}
}

func (v *ChatView) dispatch(a messageAction) {
	v.mu.Lock()
	v.state = reduceMessages(v.state, a)
	v.mu.Unlock()
	v.changed()
}

func (v *ChatView) changed() {
	if v.cfg.OnChange != nil {
		v.cfg.OnChange()
	}
}

func (v *ChatView) log(msg string, args ...any) {
	if v.cfg.Logger == nil {
		return
	}
	v.cfg.Logger.Warn(msg, append([]any{"conversation_id", v.cfg.ConversationID}, args...)...)
}
