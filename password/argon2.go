package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"
)

// Argon2Params are the argon2id cost parameters written into every hash.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes passwords with argon2id and encodes them as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
type Argon2 struct {
	params    Argon2Params
	minLength int
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates params and returns a ready hasher. minLength is the
// shortest plaintext Hash accepts.
func NewArgon2(params Argon2Params, minLength int) (*Argon2, error) {
	if err := validateArgon2(params); err != nil {
		return nil, err
	}
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return &Argon2{params: params, minLength: minLength}, nil
}

func (a *Argon2) Hash(plain string) (string, error) {
	if len(plain) < a.minLength {
		return "", fmt.Errorf("%w: need %d bytes", ErrTooShort, a.minLength)
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in encoded and
// compares in constant time. A malformed hash is an error, a mismatch is not.
func (a *Argon2) Verify(plain, encoded string) (bool, error) {
	p, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsRehash(encoded string) (bool, error) {
	p, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}
	return a.params.Memory > p.memory ||
		a.params.Time > p.time ||
		a.params.Parallelism > p.parallelism ||
		a.params.KeyLength != uint32(len(p.key)), nil
}

func parseArgon2(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected 6 PHC segments", ErrMalformedHash)
	}
	if parts[1] != argon2ID {
		return nil, ErrUnsupportedAlgorithm
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: bad version segment", ErrMalformedHash)
	}
	if version != argon2.Version {
		return nil, ErrUnsupportedAlgorithm
	}

	out := &phc{}
	if err := parseArgon2Params(parts[3], out); err != nil {
		return nil, err
	}

	if out.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if out.key, err = base64.StdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return out, nil
}

func parseArgon2Params(segment string, out *phc) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(segment, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return fmt.Errorf("%w: memory", ErrMalformedHash)
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return fmt.Errorf("%w: time", ErrMalformedHash)
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return fmt.Errorf("%w: parallelism", ErrMalformedHash)
			}
			out.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}
	if !seen["m"] || !seen["t"] || !seen["p"] {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func validateArgon2(p Argon2Params) error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("%w: memory must be >= %d KB", ErrInvalidConfig, minMemoryKB)
	case p.Time < minTimeCost:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTimeCost)
	case p.Parallelism < minParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	return nil
}
