package account

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// MinLookupSecretLength is the minimum HMAC key size in bytes.
const MinLookupSecretLength = 32

// ErrLookupSecretTooShort is returned when the HMAC key is under 32 bytes.
var ErrLookupSecretTooShort = errors.New("account: lookup secret must be at least 32 bytes")

// LookupHasher derives the unique secret lookup identifier from an email.
// The same email always maps to the same hash under one secret; the hash
// cannot be reversed without the secret.
type LookupHasher struct {
	secret []byte
}

func NewLookupHasher(secret []byte) (*LookupHasher, error) {
	if len(secret) < MinLookupSecretLength {
		return nil, ErrLookupSecretTooShort
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &LookupHasher{secret: s}, nil
}

// NormalizeEmail trims and lowercases an email before hashing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Hash returns the hex HMAC-SHA256 of the normalized email.
func (h *LookupHasher) Hash(email string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(mac.Sum(nil))
}
