package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"mujthriftz/internal/app/dto"
	domainchat "mujthriftz/internal/domain/chat"
)

const defaultProfileConcurrency = 8

type InboxConfig struct {
	UserID    string
	Messaging Messaging
	Realtime  Realtime
	Logger    *slog.Logger
	// ProfileConcurrency bounds parallel peer profile fetches during Load.
	ProfileConcurrency int
	OnChange           func()
}

// Inbox lists a user's conversations with unread badges and optimistic mark-read.
type Inbox struct {
	cfg InboxConfig

	mu    sync.Mutex
	state inboxState
	subs  map[string]Subscription
	seq   uint64
}

func NewInbox(cfg InboxConfig) *Inbox {
	if cfg.ProfileConcurrency <= 0 {
		cfg.ProfileConcurrency = defaultProfileConcurrency
	}
	return &Inbox{
		cfg:   cfg,
		state: inboxState{mutations: make(map[string]readMutation)},
		subs:  make(map[string]Subscription),
	}
}

// Load fetches conversations and unread counts together, then enriches each row
// with the peer's public profile. A missing profile leaves Peer with only its ID.
func (in *Inbox) Load(ctx context.Context) error {
	if in.cfg.UserID == "" {
		return ErrLoginRequired
	}
	var (
		convs  []dto.Conversation
		unread dto.UnreadCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = in.cfg.Messaging.Conversations(gctx, in.cfg.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = in.cfg.Messaging.UnreadCounts(gctx, in.cfg.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	peers := in.fetchPeers(ctx, convs)

	items := make([]InboxItem, 0, len(convs))
	for _, conv := range convs {
		peerID := peerOf(conv, in.cfg.UserID)
		peer, ok := peers[peerID]
		if !ok {
			peer = dto.PublicUser{ID: peerID}
		}
		items = append(items, InboxItem{
			Conversation: conv,
			Peer:         peer,
			Unread:       unread.Conversations[conv.ID],
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Conversation.UpdatedAt.After(items[j].Conversation.UpdatedAt)
	})
	total := unread.Total
	if total == 0 {
		for _, item := range items {
			total += item.Unread
		}
	}
	in.dispatch(inboxLoaded{items: items, total: total})
	return nil
}

func (in *Inbox) fetchPeers(ctx context.Context, convs []dto.Conversation) map[string]dto.PublicUser {
	seen := make(map[string]struct{}, len(convs))
	var ids []string
	for _, conv := range convs {
		id := peerOf(conv, in.cfg.UserID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	var (
		mu    sync.Mutex
		peers = make(map[string]dto.PublicUser, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.ProfileConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			user, err := in.cfg.Messaging.User(gctx, id)
			if err != nil {
				in.log("peer profile fetch failed", "user_id", id, "error", err)
				return nil
			}
			if user.ID == "" {
				user.ID = id
			}
			mu.Lock()
			peers[id] = user
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return peers
}

// Items returns the rows ordered by latest activity.
func (in *Inbox) Items() []InboxItem {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]InboxItem(nil), in.state.items...)
}

func (in *Inbox) Total() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state.total
}

func (in *Inbox) Unread(conversationID string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if idx := inboxIndex(in.state.items, conversationID); idx >= 0 {
		return in.state.items[idx].Unread
	}
	return 0
}

type MarkReadStatus struct {
	State MutationState
	Err   error
}

// Mutation reports the last mark-read issued for a conversation.
func (in *Inbox) Mutation(conversationID string) (MarkReadStatus, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	m, ok := in.state.mutations[conversationID]
	return MarkReadStatus{State: m.state, Err: m.err}, ok
}

// Open clears the conversation's badge immediately and asks the backend to mark
// it read. If the request fails, the badge and total go back to what they were.
// A second Open while one is in flight finds no badge and returns at once.
func (in *Inbox) Open(ctx context.Context, conversationID string) error {
	in.mu.Lock()
	idx := inboxIndex(in.state.items, conversationID)
	if idx < 0 {
		in.mu.Unlock()
		return ErrUnknownThread
	}
	if in.state.items[idx].Unread == 0 {
		in.mu.Unlock()
		return nil
	}
	in.seq++
	token := in.seq
	in.state = reduceInbox(in.state, markReadStarted{id: conversationID, token: token})
	in.mu.Unlock()
	in.notify()

	if _, err := in.cfg.Messaging.MarkRead(ctx, conversationID); err != nil {
		in.log("mark read failed", "conversation_id", conversationID, "error", err)
		in.dispatch(markReadFailed{id: conversationID, token: token, err: err})
		return err
	}
	in.dispatch(markReadConfirmed{id: conversationID, token: token})
	return nil
}

// Watch subscribes to every listed conversation and bumps its badge on incoming
// messages from the peer. Call it after Load; Close releases the subscriptions.
func (in *Inbox) Watch(ctx context.Context) error {
	if in.cfg.Realtime == nil {
		return nil
	}
	var errs []error
	for _, item := range in.Items() {
		id := item.Conversation.ID
		in.mu.Lock()
		_, watching := in.subs[id]
		in.mu.Unlock()
		if watching {
			continue
		}
		channel := domainchat.PrivateChannel(domainchat.ConversationID(id))
		sub, err := in.cfg.Realtime.Subscribe(ctx, channel, in.handlerFor(id))
		if err != nil {
			in.log("realtime subscribe failed", "channel", channel, "error", err)
			errs = append(errs, err)
			continue
		}
		in.mu.Lock()
		in.subs[id] = sub
		in.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (in *Inbox) handlerFor(conversationID string) EventHandler {
	return func(event string, data json.RawMessage) {
		if event != domainchat.EventNewMessage {
			return
		}
		var msg dto.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			in.log("bad new-message payload", "error", err)
			return
		}
		if msg.SenderID == in.cfg.UserID {
			return
		}
		in.dispatch(unreadBumped{id: conversationID, message: msg})
	}
}

func (in *Inbox) Close() error {
	in.mu.Lock()
	subs := in.subs
	in.subs = make(map[string]Subscription)
	in.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (in *Inbox) dispatch(a inboxAction) {
	in.mu.Lock()
	in.state = reduceInbox(in.state, a)
	in.mu.Unlock()
	in.notify()
}

func (in *Inbox) notify() {
	if in.cfg.OnChange != nil {
		in.cfg.OnChange()
	}
}

func (in *Inbox) log(msg string, args ...any) {
	if in.cfg.Logger != nil {
		in.cfg.Logger.Warn(msg, args...)
	}
}

func peerOf(conv dto.Conversation, self string) string {
	for _, p := range conv.Participants {
		if p != self {
			return p
		}
	}
	return ""
}
