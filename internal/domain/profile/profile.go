package profile

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNotFound       = errors.New("profile: not found")
	ErrUserIDRequired = errors.New("profile: user id is required")
	ErrNameRequired   = errors.New("profile: display name is required")
	ErrNameTooLong    = errors.New("profile: display name too long")
	ErrBioTooLong     = errors.New("profile: bio too long")
	ErrInvalidYear    = errors.New("profile: year must be between 1 and 6")
	ErrInvalidPhone   = errors.New("profile: phone number is invalid")
)

const (
	maxBioLength  = 500
	maxNameLength = 80
)

// Profile is the public userProfile document shown next to listings and in chat headers.
type Profile struct {
	UserID      string
	DisplayName string
	Email       string
	PhotoURL    string
	Phone       string
	Hostel      string
	Year        int
	Bio         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Public strips contact details that only the owner sees.
func (p Profile) Public() Profile {
	out := p
	out.Email = ""
	out.Phone = ""
	return out
}

type Repository interface {
	ByUserID(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
}

type Fields struct {
	DisplayName string
	PhotoURL    string
	Phone       string
	Hostel      string
	Year        int
	Bio         string
}

// New seeds a profile at registration time.
func New(userID, name, email string, now time.Time) (*Profile, error) {
	p := &Profile{UserID: strings.TrimSpace(userID), Email: strings.TrimSpace(email)}
	if p.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if now.IsZero() {
		now = time.Now()
	}
	p.CreatedAt = now.UTC()
	if err := p.Apply(Fields{DisplayName: name}, now); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) Apply(f Fields, now time.Time) error {
	name := strings.TrimSpace(f.DisplayName)
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	bio := strings.TrimSpace(f.Bio)
	if utf8.RuneCountInString(bio) > maxBioLength {
		return ErrBioTooLong
	}
	if f.Year < 0 || f.Year > 6 {
		return ErrInvalidYear
	}
	phone, err := normalizePhone(f.Phone)
	if err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now()
	}
	p.DisplayName = name
	p.PhotoURL = strings.TrimSpace(f.PhotoURL)
	p.Phone = phone
	p.Hostel = strings.TrimSpace(f.Hostel)
	p.Year = f.Year
	p.Bio = bio
	p.UpdatedAt = now.UTC()
	return nil
}

func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := strings.TrimPrefix(b.String(), "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}
