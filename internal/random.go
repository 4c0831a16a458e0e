package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

type SessionID [16]byte

const resetSecretSize = 32

var ErrMalformedSessionID = errors.New("invalid session id size")

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, ErrMalformedSessionID
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewResetToken returns a base64url token over 32 random bytes and the
// hex SHA-256 digest that is persisted in its place.
func NewResetToken() (token, digest string, err error) {
	var secret [resetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(secret[:])
	return token, DigestToken(token), nil
}

// DigestToken hashes a presented token string. Any input is accepted so a
// malformed token simply fails to match.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
