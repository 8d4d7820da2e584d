package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "mujthriftz.realtime."

// RedisRelay shares frames through Redis pub/sub, one Redis channel per realtime channel.
// The client is shared with other stores and stays open on Close.
type RedisRelay struct {
	Client *redis.Client
	Prefix string
	Logger *slog.Logger
}

func (r *RedisRelay) prefix() string {
	if r.Prefix == "" {
		return defaultPrefix
	}
	return r.Prefix
}

func (r *RedisRelay) Publish(ctx context.Context, channel string, frame []byte) error {
	if err := r.Client.Publish(ctx, r.prefix()+channel, frame).Err(); err != nil {
		return fmt.Errorf("realtime: redis publish %s: %w", channel, err)
	}
	return nil
}

func (r *RedisRelay) Run(ctx context.Context, deliver func(channel string, frame []byte)) error {
	pubsub := r.Client.PSubscribe(ctx, r.prefix()+"*")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: redis subscribe: %w", err)
	}
	if r.Logger != nil {
		r.Logger.Info("realtime relay subscribed", "broker", "redis", "pattern", r.prefix()+"*")
	}
	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			channel, found := strings.CutPrefix(msg.Channel, r.prefix())
			if !found {
				continue
			}
			deliver(channel, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) Close() error { return nil }

// NATSRelay shares frames as NATS core messages under one subject per channel.
type NATSRelay struct {
	Conn   *nats.Conn
	Prefix string
	Logger *slog.Logger
}

func NewNATSRelay(url string, logger *slog.Logger) (*NATSRelay, error) {
	opts := []nats.Option{
		nats.Name("mujthriftz-realtime"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if logger != nil && err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if logger != nil {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("realtime: connect nats %s: %w", url, err)
	}
	return &NATSRelay{Conn: nc, Logger: logger}, nil
}

func (n *NATSRelay) prefix() string {
	if n.Prefix == "" {
		return defaultPrefix
	}
	return n.Prefix
}

func (n *NATSRelay) Publish(_ context.Context, channel string, frame []byte) error {
	if err := n.Conn.Publish(n.prefix()+channel, frame); err != nil {
		return fmt.Errorf("realtime: nats publish %s: %w", channel, err)
	}
	return nil
}

func (n *NATSRelay) Run(ctx context.Context, deliver func(channel string, frame []byte)) error {
	sub, err := n.Conn.Subscribe(n.prefix()+">", func(msg *nats.Msg) {
		channel, found := strings.CutPrefix(msg.Subject, n.prefix())
		if !found {
			return
		}
		deliver(channel, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("realtime: nats subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	if n.Logger != nil {
		n.Logger.Info("realtime relay subscribed", "broker", "nats", "subject", n.prefix()+">")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (n *NATSRelay) Close() error {
	n.Conn.Close()
	return nil
}

var (
	_ Relay = (*RedisRelay)(nil)
	_ Relay = (*NATSRelay)(nil)
)
