package restclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mujthriftz/internal/chatsync"
	"mujthriftz/internal/infra/realtime"
)

var (
	ErrSocketClosed      = errors.New("restclient: realtime socket closed")
	ErrSubscriptionError = errors.New("restclient: subscription rejected")
)

// Socket multiplexes channel subscriptions over one websocket connection. It dials
// lazily on the first Subscribe.
type Socket struct {
	// URL is the realtime endpoint, for example ws://localhost:8080/realtime.
	URL    string
	Token  string
	Dialer *websocket.Dialer
	Logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   chan struct{}
	handlers map[string]map[int]chatsync.EventHandler
	pending  map[string][]chan error
	nextID   int

	writeMu sync.Mutex
}

func NewSocket(url, token string, logger *slog.Logger) *Socket {
	return &Socket{URL: url, Token: token, Logger: logger}
}

func (s *Socket) Subscribe(ctx context.Context, channel string, handler chatsync.EventHandler) (chatsync.Subscription, error) {
	if handler == nil {
		return nil, errors.New("restclient: handler required")
	}
	closed, err := s.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	joined := len(s.handlers[channel]) > 0
	if s.handlers[channel] == nil {
		s.handlers[channel] = make(map[int]chatsync.EventHandler)
	}
	s.handlers[channel][id] = handler
	var ack chan error
	if !joined {
		ack = make(chan error, 1)
		s.pending[channel] = append(s.pending[channel], ack)
	}
	s.mu.Unlock()

	sub := &socketSub{socket: s, channel: channel, id: id}
	if joined {
		return sub, nil
	}
	if err := s.write(realtime.Command{Action: realtime.ActionSubscribe, Channel: channel}); err != nil {
		s.drop(channel, id)
		return nil, err
	}
	select {
	case err := <-ack:
		if err != nil {
			s.drop(channel, id)
			return nil, err
		}
		return sub, nil
	case <-closed:
		return nil, ErrSocketClosed
	case <-ctx.Done():
		s.drop(channel, id)
		return nil, ctx.Err()
	}
}

// Close shuts the connection; every subscription ends with it.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return conn.Close()
}

func (s *Socket) ensureConn(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		select {
		case <-s.closed:
			return nil, ErrSocketClosed
		default:
			return s.closed, nil
		}
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if s.Token != "" {
		header.Set("Authorization", "Bearer "+s.Token)
	}
	conn, resp, err := dialer.DialContext(ctx, s.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("restclient: dial realtime: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("restclient: dial realtime: %w", err)
	}
	s.conn = conn
	s.closed = make(chan struct{})
	s.handlers = make(map[string]map[int]chatsync.EventHandler)
	s.pending = make(map[string][]chan error)
	go s.readLoop(conn, s.closed)
	return s.closed, nil
}

func (s *Socket) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer func() {
		s.mu.Lock()
		for channel, waiters := range s.pending {
			for _, w := range waiters {
				w <- ErrSocketClosed
			}
			delete(s.pending, channel)
		}
		s.mu.Unlock()
		close(closed)
	}()
	for {
		var frame realtime.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if s.Logger != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Logger.Warn("realtime socket closed", "error", err)
			}
			return
		}
		switch frame.Event {
		case realtime.EventSubscribed:
			s.resolve(frame.Channel, nil)
		case realtime.EventSubscriptionError:
			s.resolve(frame.Channel, fmt.Errorf("%w: %s", ErrSubscriptionError, frame.Channel))
		default:
			s.dispatch(frame)
		}
	}
}

func (s *Socket) resolve(channel string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiters := s.pending[channel]
	if len(waiters) == 0 {
		return
	}
	waiters[0] <- err
	if len(waiters) == 1 {
		delete(s.pending, channel)
		return
	}
	s.pending[channel] = waiters[1:]
}

func (s *Socket) dispatch(frame realtime.Frame) {
	s.mu.Lock()
	handlers := make([]chatsync.EventHandler, 0, len(s.handlers[frame.Channel]))
	for _, h := range s.handlers[frame.Channel] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(frame.Event, frame.Data)
	}
}

func (s *Socket) write(cmd realtime.Command) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("restclient: realtime write: %w", err)
	}
	return nil
}

// drop removes one handler and reports whether the channel has none left.
func (s *Socket) drop(channel string, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[channel], id)
	if len(s.handlers[channel]) == 0 {
		delete(s.handlers, channel)
		return true
	}
	return false
}

type socketSub struct {
	socket  *Socket
	channel string
	id      int
	once    sync.Once
}

func (sub *socketSub) Unsubscribe() error {
	var err error
	sub.once.Do(func() {
		if sub.socket.drop(sub.channel, sub.id) {
			err = sub.socket.write(realtime.Command{Action: realtime.ActionUnsubscribe, Channel: sub.channel})
		}
	})
	return err
}

var _ chatsync.Realtime = (*Socket)(nil)
