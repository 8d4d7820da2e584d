package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domainauth "mujthriftz/internal/domain/auth"
	domainprofile "mujthriftz/internal/domain/profile"
	domainuser "mujthriftz/internal/domain/user"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
	defaultSessionTTL = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("auth: password must be at most 72 bytes")
	errNotConfigured      = errors.New("auth: service not configured")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Rehasher is implemented by hashers whose work factor can be raised. Login
// replaces hashes it reports as outdated.
type Rehasher interface {
	NeedsRehash(hash string) bool
}

// TokenIssuer mints signed bearer tokens and verifies them back to a subject.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
	Verify(token string) (string, error)
}

// Service signs students up and in. A token is only honoured while its session
// record exists, which is what makes logout immediate.
type Service struct {
	Users      domainuser.Repository
	Profiles   domainprofile.Repository
	Sessions   domainauth.SessionStore
	Passwords  PasswordHasher
	Tokens     TokenIssuer
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
	DeviceID    string
}

type LoginParams struct {
	Email    string
	Password string
	DeviceID string
}

type AuthResult struct {
	User    *domainuser.User
	Session *domainauth.Session
	Token   string
}

type ResolveResult struct {
	User    *domainuser.User
	Session *domainauth.Session
}

// Register creates the account, seeds its public profile and opens a session
// for the registering device.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if !s.configured() {
		return nil, errNotConfigured
	}
	email, err := domainuser.NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		return nil, domainuser.ErrNameRequired
	}
	if utf8.RuneCountInString(params.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if len(params.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	switch _, err := s.Users.ByEmail(ctx, email); {
	case err == nil:
		return nil, domainuser.ErrEmailAlreadyUsed
	case !errors.Is(err, domainuser.ErrNotFound):
		return nil, err
	}

	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	joined := s.now()
	student, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Roles:        []domainuser.Role{domainuser.RoleStudent},
		CreatedAt:    joined,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, student); err != nil {
		return nil, err
	}
	if err := s.seedProfile(ctx, student, joined); err != nil {
		return nil, err
	}
	result, err := s.open(ctx, student, params.DeviceID)
	if err != nil {
		return nil, err
	}
	s.log("student registered", student.ID, params.DeviceID)
	return result, nil
}

// Login never tells the caller whether the email or the password was wrong.
func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if !s.configured() {
		return nil, errNotConfigured
	}
	email, err := domainuser.NormalizeEmail(params.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	student, err := s.Users.ByEmail(ctx, email)
	switch {
	case errors.Is(err, domainuser.ErrNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}
	if s.Passwords.Compare(student.PasswordHash, params.Password) != nil {
		return nil, ErrInvalidCredentials
	}
	s.upgradeHash(ctx, student, params.Password)
	result, err := s.open(ctx, student, params.DeviceID)
	if err != nil {
		return nil, err
	}
	s.log("student signed in", student.ID, params.DeviceID)
	return result, nil
}

// Logout revokes token and returns the device it was opened on, so callers can
// clear device-scoped state even when the client forgot to send its id.
// Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) (string, error) {
	if !s.configured() {
		return "", errNotConfigured
	}
	key := domainauth.Token(strings.TrimSpace(token))
	if key == "" {
		return "", nil
	}
	var device string
	session, err := s.Sessions.Get(ctx, key)
	switch {
	case err == nil:
		device = session.DeviceID
	case !errors.Is(err, domainauth.ErrSessionNotFound):
		return "", err
	}
	if err := s.Sessions.Delete(ctx, key); err != nil {
		return "", err
	}
	return device, nil
}

// LogoutEverywhere drops every session the user holds.
func (s *Service) LogoutEverywhere(ctx context.Context, userID string) error {
	if !s.configured() {
		return errNotConfigured
	}
	id := domainuser.ID(strings.TrimSpace(userID))
	if id == "" {
		return domainauth.ErrUserRequired
	}
	if err := s.Sessions.DeleteByUser(ctx, id); err != nil {
		return err
	}
	s.log("all sessions revoked", id, "")
	return nil
}

// ResolveToken checks the signature before touching the session store, so
// forged tokens never cost a lookup.
func (s *Service) ResolveToken(ctx context.Context, token string) (*ResolveResult, error) {
	if !s.configured() {
		return nil, errNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainauth.ErrTokenRequired
	}
	subject, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainauth.ErrSessionNotFound, err)
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		return nil, err
	}
	if string(session.UserID) != subject || session.Expired(s.now()) {
		s.revoke(ctx, session.Token)
		return nil, domainauth.ErrSessionNotFound
	}
	student, err := s.Users.ByID(ctx, session.UserID)
	if errors.Is(err, domainuser.ErrNotFound) {
		s.revoke(ctx, session.Token)
		return nil, domainauth.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ResolveResult{User: student, Session: session}, nil
}

func (s *Service) seedProfile(ctx context.Context, student *domainuser.User, at time.Time) error {
	if s.Profiles == nil {
		return nil
	}
	profile, err := domainprofile.New(string(student.ID), student.DisplayName, student.Email, at)
	if err != nil {
		return err
	}
	return s.Profiles.Save(ctx, profile)
}

// upgradeHash is best effort; the login goes ahead with the old hash on failure.
func (s *Service) upgradeHash(ctx context.Context, student *domainuser.User, password string) {
	r, ok := s.Passwords.(Rehasher)
	if !ok || !r.NeedsRehash(student.PasswordHash) {
		return
	}
	hash, err := s.Passwords.Hash(password)
	if err == nil {
		previous := student.PasswordHash
		student.PasswordHash = hash
		if err = s.Users.Save(ctx, student); err != nil {
			student.PasswordHash = previous
		}
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("password rehash failed", "user_id", student.ID, "error", err)
	}
}

func (s *Service) open(ctx context.Context, student *domainuser.User, device string) (*AuthResult, error) {
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	token, err := s.Tokens.Issue(string(student.ID), ttl)
	if err != nil {
		return nil, err
	}
	session, err := domainauth.Open(domainauth.OpenParams{
		Token:    domainauth.Token(token),
		UserID:   student.ID,
		DeviceID: device,
		Roles:    student.Roles,
		TTL:      ttl,
		Now:      s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return &AuthResult{User: student, Session: session, Token: token}, nil
}

func (s *Service) revoke(ctx context.Context, token domainauth.Token) {
	if err := s.Sessions.Delete(ctx, token); err != nil && s.Logger != nil {
		s.Logger.Warn("session revoke failed", "error", err)
	}
}

func (s *Service) log(msg string, id domainuser.ID, device string) {
	if s.Logger == nil {
		return
	}
	if device == "" {
		s.Logger.Info(msg, "user_id", id)
		return
	}
	s.Logger.Info(msg, "user_id", id, "device_id", device)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) configured() bool {
	return s.Users != nil && s.Sessions != nil && s.Passwords != nil && s.Tokens != nil
}
