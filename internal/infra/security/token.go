package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrSecretRequired = errors.New("token: signing secret required")
	ErrTokenInvalid   = errors.New("token: invalid")
)

// JWTIssuer signs HS256 bearer tokens. Each token carries a unique jti so two
// logins in the same second still get distinct session keys.
type JWTIssuer struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

func (j JWTIssuer) Issue(subject string, ttl time.Duration) (string, error) {
	if len(j.Secret) == 0 {
		return "", ErrSecretRequired
	}
	now := j.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    j.issuer(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the subject.
func (j JWTIssuer) Verify(token string) (string, error) {
	if len(j.Secret) == 0 {
		return "", ErrSecretRequired
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	},
		jwt.WithIssuer(j.issuer()),
		jwt.WithTimeFunc(j.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (j JWTIssuer) issuer() string {
	if j.Issuer != "" {
		return j.Issuer
	}
	return "mujthriftz"
}

func (j JWTIssuer) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}
