package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"mujthriftz/internal/domain/user"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrUserRequired    = errors.New("auth: user is required")
	ErrTTLInvalid      = errors.New("auth: ttl must be positive")
	ErrSessionNotFound = errors.New("auth: session not found")
)

type Token string

// Session is one signed-in device. DeviceID is the client-chosen id that also
// scopes the device's wishlist; it may be empty for API clients.
type Session struct {
	Token     Token
	UserID    user.ID
	DeviceID  string
	Roles     []user.Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

type OpenParams struct {
	Token    Token
	UserID   user.ID
	DeviceID string
	Roles    []user.Role
	TTL      time.Duration
	Now      time.Time
}

func Open(params OpenParams) (*Session, error) {
	token := Token(strings.TrimSpace(string(params.Token)))
	switch {
	case token == "":
		return nil, ErrTokenRequired
	case strings.TrimSpace(string(params.UserID)) == "":
		return nil, ErrUserRequired
	case params.TTL <= 0:
		return nil, ErrTTLInvalid
	}
	opened := params.Now
	if opened.IsZero() {
		opened = time.Now()
	}
	opened = opened.UTC()
	return &Session{
		Token:     token,
		UserID:    params.UserID,
		DeviceID:  strings.TrimSpace(params.DeviceID),
		Roles:     append([]user.Role(nil), params.Roles...),
		CreatedAt: opened,
		ExpiresAt: opened.Add(params.TTL),
	}, nil
}

// Expired reports whether the session is unusable at the given instant.
func (s *Session) Expired(at time.Time) bool {
	if at.IsZero() {
		at = time.Now()
	}
	return !s.ExpiresAt.After(at.UTC())
}

// SessionStore tracks live sessions so a token can be revoked before its
// signature runs out. DeleteByUser signs a student out on every device.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, token Token) (*Session, error)
	Delete(ctx context.Context, token Token) error
	DeleteByUser(ctx context.Context, userID user.ID) error
}
