// Package realtime fans chat events out to websocket subscribers. A Hub delivers
// frames to local connections; an optional Relay carries them between instances.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mujthriftz/internal/app/policies"
)

var ErrChannelRequired = errors.New("realtime: channel is required")

// Frame is the wire shape of every message pushed to a subscriber.
type Frame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Relay moves encoded frames between server instances.
type Relay interface {
	Publish(ctx context.Context, channel string, frame []byte) error
	// Run delivers frames published by any instance until ctx ends.
	Run(ctx context.Context, deliver func(channel string, frame []byte)) error
	Close() error
}

// Metrics is the subset of obs.Metrics the hub reports to.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	EventDropped()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed() {}
func (nopMetrics) EventDropped()     {}

const defaultBuffer = 64

// Subscriber is one consumer of hub frames, usually a websocket connection.
type Subscriber struct {
	send chan []byte
	gone chan struct{}
	once sync.Once
}

// Frames yields encoded frames in publish order.
func (s *Subscriber) Frames() <-chan []byte { return s.send }

// Done is closed when the subscriber was removed, either explicitly or for being too slow.
func (s *Subscriber) Done() <-chan struct{} { return s.gone }

func (s *Subscriber) offer(frame []byte) bool {
	select {
	case <-s.gone:
		return true
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

type Hub struct {
	Relay   Relay
	Metrics Metrics
	// Buffer bounds each subscriber's pending frames. A subscriber that falls this far
	// behind is dropped instead of stalling delivery to everyone else.
	Buffer int

	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	members  map[*Subscriber]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Subscriber]struct{}),
		members:  make(map[*Subscriber]map[string]struct{}),
	}
}

func (h *Hub) metrics() Metrics {
	if h.Metrics == nil {
		return nopMetrics{}
	}
	return h.Metrics
}

// NewSubscriber registers a subscriber without channels.
func (h *Hub) NewSubscriber() *Subscriber {
	size := h.Buffer
	if size <= 0 {
		size = defaultBuffer
	}
	s := &Subscriber{send: make(chan []byte, size), gone: make(chan struct{})}
	h.mu.Lock()
	h.members[s] = make(map[string]struct{})
	h.mu.Unlock()
	return s
}

func (h *Hub) Join(s *Subscriber, channel string) error {
	if channel == "" {
		return ErrChannelRequired
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.members[s]
	if !ok {
		return errors.New("realtime: subscriber removed")
	}
	joined[channel] = struct{}{}
	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[*Subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[s] = struct{}{}
	return nil
}

func (h *Hub) Leave(s *Subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if joined, ok := h.members[s]; ok {
		delete(joined, channel)
	}
	h.detach(s, channel)
}

// Remove drops the subscriber from every channel and closes Done.
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	for channel := range h.members[s] {
		h.detach(s, channel)
	}
	delete(h.members, s)
	h.mu.Unlock()
	s.once.Do(func() { close(s.gone) })
}

func (h *Hub) detach(s *Subscriber, channel string) {
	subs := h.channels[channel]
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// Subscribers reports how many subscribers listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Publish encodes the event and hands it to the relay, or delivers it locally when
// no relay is configured.
func (h *Hub) Publish(ctx context.Context, channel, event string, data any) error {
	if channel == "" {
		return ErrChannelRequired
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Channel: channel, Event: event, Data: raw})
	if err != nil {
		return err
	}
	if h.Relay != nil {
		return h.Relay.Publish(ctx, channel, frame)
	}
	h.Deliver(channel, frame)
	return nil
}

// Deliver pushes an encoded frame to local subscribers of channel.
func (h *Hub) Deliver(channel string, frame []byte) {
	var slow []*Subscriber
	h.mu.RLock()
	for s := range h.channels[channel] {
		if !s.offer(frame) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range slow {
		h.metrics().EventDropped()
		h.Remove(s)
	}
}

// Run pumps relay frames into local delivery until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	if h.Relay == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return h.Relay.Run(ctx, h.Deliver)
}

var _ policies.Publisher = (*Hub)(nil)
