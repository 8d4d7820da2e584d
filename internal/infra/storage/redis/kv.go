// Package redis backs the scoped wishlist store with Redis strings.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domainwishlist "mujthriftz/internal/domain/wishlist"
)

const defaultPrefix = "mujthriftz:kv:"

// Connect dials addr and pings it once.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", addr, err)
	}
	return client, nil
}

// KV stores one value per (scope, key). TTL, when set, is refreshed on every write.
type KV struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewKV(client *redis.Client, ttl time.Duration) *KV {
	return &KV{Client: client, TTL: ttl}
}

func (s *KV) Get(ctx context.Context, scope, key string) ([]byte, error) {
	raw, err := s.Client.Get(ctx, s.key(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domainwishlist.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return raw, nil
}

func (s *KV) Put(ctx context.Context, scope, key string, value []byte) error {
	if err := s.Client.Set(ctx, s.key(scope, key), value, s.TTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, scope, key string) error {
	if err := s.Client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

func (s *KV) key(scope, key string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	// scopes are device ids or user ids; colons would make keys ambiguous
	return prefix + strings.ReplaceAll(scope, ":", "_") + ":" + key
}

var _ domainwishlist.Store = (*KV)(nil)
