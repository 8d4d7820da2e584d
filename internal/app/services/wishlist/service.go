package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	domaincatalog "mujthriftz/internal/domain/catalog"
	domainwishlist "mujthriftz/internal/domain/wishlist"
)

// Service is the typed accessor over the raw wishlist key. Reads and writes for
// one scope are serialized inside the process.
type Service struct {
	Store   domainwishlist.Store
	Catalog domaincatalog.Repository
	Logger  *slog.Logger

	locks sync.Map
}

// Load returns the stored set. A corrupt value is logged and treated as empty.
func (s *Service) Load(ctx context.Context, scope string) (domainwishlist.Set, error) {
	scope, err := normalizeScope(scope)
	if err != nil {
		return domainwishlist.Set{}, err
	}
	return s.load(ctx, scope)
}

// Toggle flips membership of id and reports whether it is now saved.
func (s *Service) Toggle(ctx context.Context, scope, id string) (bool, domainwishlist.Set, error) {
	scope, err := normalizeScope(scope)
	if err != nil {
		return false, domainwishlist.Set{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, domainwishlist.Set{}, domainwishlist.ErrItemRequired
	}
	mu := s.lockFor(scope)
	mu.Lock()
	defer mu.Unlock()

	set, err := s.load(ctx, scope)
	if err != nil {
		return false, domainwishlist.Set{}, err
	}
	saved := set.Toggle(id)
	raw, err := set.Encode()
	if err != nil {
		return false, domainwishlist.Set{}, err
	}
	if err := s.Store.Put(ctx, scope, domainwishlist.Key, raw); err != nil {
		return false, domainwishlist.Set{}, fmt.Errorf("wishlist: store: %w", err)
	}
	return saved, set, nil
}

// Resolve loads the documents behind the saved ids, silently skipping ids that
// no longer exist or were deactivated. The stored set is left untouched.
func (s *Service) Resolve(ctx context.Context, scope string) (domainwishlist.Set, []*domaincatalog.Document, error) {
	set, err := s.Load(ctx, scope)
	if err != nil {
		return domainwishlist.Set{}, nil, err
	}
	if s.Catalog == nil {
		return set, nil, nil
	}
	docs := make([]*domaincatalog.Document, 0, set.Len())
	for _, id := range set.IDs() {
		doc, err := s.Catalog.ByID(ctx, domaincatalog.DocumentID(id))
		if errors.Is(err, domaincatalog.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return domainwishlist.Set{}, nil, err
		}
		if !doc.Active {
			continue
		}
		docs = append(docs, doc)
	}
	return set, docs, nil
}

// Invalidate drops the scope's wishlist. Called whenever the session behind a device changes.
func (s *Service) Invalidate(ctx context.Context, scope string) error {
	scope, err := normalizeScope(scope)
	if err != nil {
		return err
	}
	mu := s.lockFor(scope)
	mu.Lock()
	defer mu.Unlock()
	return s.Store.Delete(ctx, scope, domainwishlist.Key)
}

func (s *Service) load(ctx context.Context, scope string) (domainwishlist.Set, error) {
	if s.Store == nil {
		return domainwishlist.Set{}, errors.New("wishlist: store required")
	}
	raw, err := s.Store.Get(ctx, scope, domainwishlist.Key)
	if errors.Is(err, domainwishlist.ErrKeyNotFound) {
		return domainwishlist.Set{}, nil
	}
	if err != nil {
		return domainwishlist.Set{}, err
	}
	set, err := domainwishlist.Decode(raw)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("discarding unreadable wishlist", "scope", scope, "error", err)
		}
		return domainwishlist.Set{}, nil
	}
	return set, nil
}

func (s *Service) lockFor(scope string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(scope, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func normalizeScope(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", domainwishlist.ErrScopeRequired
	}
	return scope, nil
}
