package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxLength is the longest input bcrypt hashes without truncation.
const bcryptMaxLength = 72

// Bcrypt hashes with the adaptive bcrypt cost function. It exists for
// deployments whose stored hashes predate argon2id.
type Bcrypt struct {
	cost      int
	minLength int
}

func NewBcrypt(cost, minLength int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost must be in [%d,%d]", ErrInvalidConfig, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return &Bcrypt{cost: cost, minLength: minLength}, nil
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	if len(plain) < b.minLength {
		return "", fmt.Errorf("%w: need %d bytes", ErrTooShort, b.minLength)
	}
	if len(plain) > bcryptMaxLength {
		return "", fmt.Errorf("%w: bcrypt accepts at most %d bytes", ErrTooLong, bcryptMaxLength)
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(plain, encoded string) (bool, error) {
	if !isBcrypt(encoded) {
		return false, ErrUnsupportedAlgorithm
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

func (b *Bcrypt) NeedsRehash(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
