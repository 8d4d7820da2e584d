package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	domainchat "mujthriftz/internal/domain/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxCommandSize = 1024
)

// Control events sent on the channel a client asked to join.
const (
	EventSubscribed        = "subscription_succeeded"
	EventSubscriptionError = "subscription_error"
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

var ErrUnknownChannel = errors.New("realtime: unknown channel")

// Authorizer reports whether user may receive events of channel.
type Authorizer func(ctx context.Context, user, channel string) error

// Command is what clients send over the socket.
type Command struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type SessionConfig struct {
	User      string
	Authorize Authorizer
	// Channels are joined before any command is read.
	Channels []string
	Logger   *slog.Logger
}

// Serve runs one websocket connection until the peer goes away, the subscriber is
// dropped for being slow, or ctx ends. It blocks; the caller owns nothing afterwards.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, cfg SessionConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sub := h.NewSubscriber()
	h.metrics().ConnectionOpened()
	defer h.metrics().ConnectionClosed()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s := &session{hub: h, conn: conn, sub: sub, cfg: cfg, logger: logger}
	for _, channel := range cfg.Channels {
		s.subscribe(ctx, channel)
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writePump()
	}()
	s.readPump(ctx)
	h.Remove(sub)
	<-written
	_ = conn.Close()
}

type session struct {
	hub    *Hub
	conn   *websocket.Conn
	sub    *Subscriber
	cfg    SessionConfig
	logger *slog.Logger
}

func (s *session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxCommandSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("realtime read ended", "user", s.cfg.User, "error", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.reply(Frame{Event: EventSubscriptionError, Data: errorData("malformed command")})
			continue
		}
		switch cmd.Action {
		case ActionSubscribe:
			s.subscribe(ctx, cmd.Channel)
		case ActionUnsubscribe:
			s.hub.Leave(s.sub, cmd.Channel)
		default:
			s.reply(Frame{Channel: cmd.Channel, Event: EventSubscriptionError, Data: errorData("unknown action")})
		}
	}
}

func (s *session) subscribe(ctx context.Context, channel string) {
	if s.cfg.Authorize != nil {
		if err := s.cfg.Authorize(ctx, s.cfg.User, channel); err != nil {
			s.logger.Warn("realtime subscription denied", "user", s.cfg.User, "channel", channel, "error", err)
			s.reply(Frame{Channel: channel, Event: EventSubscriptionError, Data: errorData("forbidden")})
			return
		}
	}
	if err := s.hub.Join(s.sub, channel); err != nil {
		s.reply(Frame{Channel: channel, Event: EventSubscriptionError, Data: errorData(err.Error())})
		return
	}
	s.reply(Frame{Channel: channel, Event: EventSubscribed})
}

func (s *session) reply(f Frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	if !s.sub.offer(raw) {
		s.hub.metrics().EventDropped()
		s.hub.Remove(s.sub)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame := <-s.sub.Frames():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.sub.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = s.conn.Close()
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func errorData(msg string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return raw
}

// ChatAuthorizer admits a user to a chat channel only when they take part in the
// conversation the channel belongs to.
func ChatAuthorizer(repo domainchat.Repository) Authorizer {
	return func(ctx context.Context, user, channel string) error {
		id, ok := domainchat.ConversationFromChannel(channel)
		if !ok {
			return ErrUnknownChannel
		}
		conv, err := repo.Conversation(ctx, id)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(domainchat.UserID(user)) {
			return domainchat.ErrNotParticipant
		}
		return nil
	}
}
