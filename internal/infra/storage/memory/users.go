package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domainauth "mujthriftz/internal/domain/auth"
	domainuser "mujthriftz/internal/domain/user"
)

// UserRepository indexes users by id and normalized email.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[domainuser.ID]domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[domainuser.ID]domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(_ context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return copyUser(user), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[emailKey(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return r.ByID(ctx, id)
}

// Save upserts user. Changing the email releases the old address.
func (r *UserRepository) Save(_ context.Context, user *domainuser.User) error {
	if user == nil || strings.TrimSpace(string(user.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	key := emailKey(user.Email)
	if key == "" {
		return domainuser.ErrEmailRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.byEmail[key]; ok && owner != user.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	if prev, ok := r.byID[user.ID]; ok {
		if prevKey := emailKey(prev.Email); prevKey != key {
			delete(r.byEmail, prevKey)
		}
	}
	r.byEmail[key] = user.ID
	r.byID[user.ID] = *copyUser(*user)
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyUser(u domainuser.User) *domainuser.User {
	u.Roles = append([]domainuser.Role(nil), u.Roles...)
	return &u
}

// SessionStore keeps bearer sessions with a per-user index for bulk revocation.
type SessionStore struct {
	mu     sync.RWMutex
	tokens map[domainauth.Token]domainauth.Session
	byUser map[domainuser.ID]map[domainauth.Token]struct{}
	Now    func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		tokens: make(map[domainauth.Token]domainauth.Session),
		byUser: make(map[domainuser.ID]map[domainauth.Token]struct{}),
	}
}

func (s *SessionStore) Save(_ context.Context, session *domainauth.Session) error {
	if session == nil || session.Token == "" {
		return domainauth.ErrTokenRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	stored.Roles = append([]domainuser.Role(nil), session.Roles...)
	s.tokens[session.Token] = stored
	if s.byUser[session.UserID] == nil {
		s.byUser[session.UserID] = make(map[domainauth.Token]struct{})
	}
	s.byUser[session.UserID][session.Token] = struct{}{}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	s.mu.RLock()
	session, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return nil, domainauth.ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		_ = s.Delete(ctx, token)
		return nil, domainauth.ErrSessionNotFound
	}
	session.Roles = append([]domainuser.Role(nil), session.Roles...)
	return &session, nil
}

func (s *SessionStore) Delete(_ context.Context, token domainauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.tokens[token]
	if !ok {
		return nil
	}
	delete(s.tokens, token)
	if index := s.byUser[session.UserID]; index != nil {
		delete(index, token)
		if len(index) == 0 {
			delete(s.byUser, session.UserID)
		}
	}
	return nil
}

func (s *SessionStore) DeleteByUser(_ context.Context, userID domainuser.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.byUser[userID] {
		delete(s.tokens, token)
	}
	delete(s.byUser, userID)
	return nil
}

func (s *SessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var (
	_ domainuser.Repository   = (*UserRepository)(nil)
	_ domainauth.SessionStore = (*SessionStore)(nil)
)
