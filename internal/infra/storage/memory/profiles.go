package memory

import (
	"context"
	"strings"
	"sync"

	domainprofile "mujthriftz/internal/domain/profile"
)

type ProfileRepository struct {
	mu    sync.RWMutex
	items map[string]domainprofile.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{items: make(map[string]domainprofile.Profile)}
}

func (r *ProfileRepository) ByUserID(_ context.Context, userID string) (*domainprofile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[strings.TrimSpace(userID)]
	if !ok {
		return nil, domainprofile.ErrNotFound
	}
	return &p, nil
}

func (r *ProfileRepository) Save(_ context.Context, p *domainprofile.Profile) error {
	if p == nil || strings.TrimSpace(p.UserID) == "" {
		return domainprofile.ErrUserIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.UserID] = *p
	return nil
}

var _ domainprofile.Repository = (*ProfileRepository)(nil)
