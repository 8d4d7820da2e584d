package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Key is the single storage key holding a scope's wishlist.
const Key = "wishlist"

var (
	ErrScopeRequired = errors.New("wishlist: scope is required")
	ErrItemRequired  = errors.New("wishlist: item id is required")
	ErrKeyNotFound   = errors.New("wishlist: key not found")
)

// Store is a per-scope key/value store. Values are opaque bytes.
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
}

// Set is an insertion-ordered set of document ids.
type Set struct {
	ids []string
}

func NewSet(ids ...string) Set {
	var s Set
	for _, id := range ids {
		s.add(id)
	}
	return s
}

// Decode parses the stored JSON array. Empty input is an empty set.
func Decode(raw []byte) (Set, error) {
	if len(raw) == 0 {
		return Set{}, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return Set{}, fmt.Errorf("wishlist: decode: %w", err)
	}
	return NewSet(ids...), nil
}

func (s Set) Encode() ([]byte, error) {
	ids := s.IDs()
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func (s Set) IDs() []string {
	return append([]string(nil), s.ids...)
}

func (s Set) Len() int { return len(s.ids) }

func (s Set) Contains(id string) bool {
	id = strings.TrimSpace(id)
	for _, current := range s.ids {
		if current == id {
			return true
		}
	}
	return false
}

// Toggle adds id when absent and removes it otherwise. It reports whether id is now present.
func (s *Set) Toggle(id string) bool {
	id = strings.TrimSpace(id)
	for i, current := range s.ids {
		if current == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			return false
		}
	}
	s.add(id)
	return true
}

// Retain drops ids for which keep returns false and reports how many were dropped.
func (s *Set) Retain(keep func(id string) bool) int {
	kept := s.ids[:0:0]
	for _, id := range s.ids {
		if keep(id) {
			kept = append(kept, id)
		}
	}
	dropped := len(s.ids) - len(kept)
	s.ids = kept
	return dropped
}

func (s *Set) add(id string) {
	id = strings.TrimSpace(id)
	if id == "" || s.Contains(id) {
		return
	}
	s.ids = append(s.ids, id)
}
