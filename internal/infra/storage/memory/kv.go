package memory

import (
	"context"
	"sync"

	domainwishlist "mujthriftz/internal/domain/wishlist"
)

// KV is a scoped byte store, the in-process stand-in for Redis.
type KV struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

func NewKV() *KV {
	return &KV{values: make(map[string]map[string][]byte)}
}

func (s *KV) Get(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.values[scope][key]
	if !ok {
		return nil, domainwishlist.ErrKeyNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *KV) Put(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[scope] == nil {
		s.values[scope] = make(map[string][]byte)
	}
	s.values[scope][key] = append([]byte(nil), value...)
	return nil
}

func (s *KV) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values[scope], key)
	if len(s.values[scope]) == 0 {
		delete(s.values, scope)
	}
	return nil
}

var _ domainwishlist.Store = (*KV)(nil)
