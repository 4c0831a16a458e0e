package password

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMinLength is the shortest plaintext accepted when none is configured.
const DefaultMinLength = 10

var (
	ErrTooShort             = errors.New("password: too short")
	ErrTooLong              = errors.New("password: too long")
	ErrMalformedHash        = errors.New("password: malformed hash")
	ErrUnsupportedAlgorithm = errors.New("password: unsupported algorithm")
	ErrInvalidConfig        = errors.New("password: invalid config")
)

// Hasher is the credential verifier port. Implementations hold no account
// knowledge and have no side effects beyond reading randomness.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// Config selects and parameterizes a Hasher.
type Config struct {
	// Algorithm is "argon2id" (default) or "bcrypt".
	Algorithm  string
	MinLength  int
	Argon2     Argon2Params
	BcryptCost int
}

// DefaultConfig returns argon2id parameters suitable for interactive logins.
func DefaultConfig() Config {
	return Config{
		Algorithm: argon2ID,
		MinLength: DefaultMinLength,
		Argon2: Argon2Params{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 12,
	}
}

func NewHasher(cfg Config) (Hasher, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case "", argon2ID:
		return NewArgon2(cfg.Argon2, cfg.MinLength)
	case "bcrypt":
		return NewBcrypt(cfg.BcryptCost, cfg.MinLength)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
}
