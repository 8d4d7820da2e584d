package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the most input bcrypt reads.
const MaxPasswordBytes = 72

var (
	ErrPasswordTooLong  = errors.New("security: password longer than 72 bytes")
	ErrPasswordMismatch = errors.New("security: password does not match")
)

// BcryptHasher hashes student passwords. A Cost below bcrypt.MinCost means
// bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash refuses input bcrypt would silently cut at MaxPasswordBytes.
func (h BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("security: hash password: %w", err)
	}
	return string(out), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// NeedsRehash reports a hash made with a lower cost than h now uses, for
// example accounts created while the cost was still the default.
func (h BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost < h.cost()
}

func (h BcryptHasher) cost() int {
	if h.Cost >= bcrypt.MinCost {
		return h.Cost
	}
	return bcrypt.DefaultCost
}
