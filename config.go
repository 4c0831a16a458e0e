package marketauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/notify"
	"github.com/MrEthical07/marketauth/password"
)

// Config holds every tunable of the Engine. Obtain a starting point with
// DefaultConfig and adjust fields before handing it to the Builder.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	Lockout       LockoutConfig
	PasswordReset PasswordResetConfig
	Lookup        LookupConfig
	Kinds         map[account.Kind]KindConfig
	Throttle      ThrottleConfig
	Sessions      SessionsConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Algorithm   string // "argon2id" (default) or "bcrypt"
	MinLength   int
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int
}

func (p PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Algorithm: p.Algorithm,
		MinLength: p.MinLength,
		Argon2: password.Argon2Params{
			Memory:      p.Memory,
			Time:        p.Time,
			Parallelism: p.Parallelism,
			SaltLength:  p.SaltLength,
			KeyLength:   p.KeyLength,
		},
		BcryptCost: p.BcryptCost,
	}
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

type LockoutConfig struct {
	MaxAttempts  int
	UnlockWindow time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

type PasswordResetConfig struct {
	TTL time.Duration
}

/*
====================================
LOOKUP CONFIG
====================================
*/

// LookupConfig keys the deterministic email lookup hash. The secret must be
// stable for the lifetime of the data set.
type LookupConfig struct {
	Secret []byte
}

/*
====================================
KIND CONFIG
====================================
*/

// KindConfig holds the per-population differences.
type KindConfig struct {
	// RequireVerification starts new accounts as UNVERIFIED.
	RequireVerification bool
	// ResetLinkBase is the page that receives token and email query params.
	ResetLinkBase string
	EmailTemplate string
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig controls the optional Redis login throttle that runs in
// front of the credential check.
type ThrottleConfig struct {
	Enabled              bool
	EnableOriginThrottle bool
	MaxAttempts          int
	Window               time.Duration
}

/*
====================================
SESSIONS CONFIG
====================================
*/

type SessionsConfig struct {
	EnrichTimeout time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a production-leaning configuration. Token keys and
// the lookup secret are left empty and must be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Token: TokenConfig{
			TTL:           12 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "marketauth",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Algorithm:   "argon2id",
			MinLength:   pw.MinLength,
			Memory:      pw.Argon2.Memory,
			Time:        pw.Argon2.Time,
			Parallelism: pw.Argon2.Parallelism,
			SaltLength:  pw.Argon2.SaltLength,
			KeyLength:   pw.Argon2.KeyLength,
			BcryptCost:  pw.BcryptCost,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			UnlockWindow: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TTL: 60 * time.Minute,
		},
		Kinds: map[account.Kind]KindConfig{
			account.KindUser: {
				RequireVerification: true,
				ResetLinkBase:       "https://shop.example.com/reset-password",
				EmailTemplate:       "password_reset",
			},
			account.KindVendor: {
				RequireVerification: true,
				ResetLinkBase:       "https://sell.example.com/reset-password",
				EmailTemplate:       "vendor_password_reset",
			},
			account.KindAdmin: {
				RequireVerification: false,
				ResetLinkBase:       "https://admin.example.com/reset-password",
				EmailTemplate:       "admin_password_reset",
			},
		},
		Throttle: ThrottleConfig{
			Enabled:              false,
			EnableOriginThrottle: true,
			MaxAttempts:          20,
			Window:               15 * time.Minute,
		},
		Sessions: SessionsConfig{
			EnrichTimeout: 250 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Lookup.Secret = cloneBytes(cfg.Lookup.Secret)
	if cfg.Kinds != nil {
		out.Kinds = make(map[account.Kind]KindConfig, len(cfg.Kinds))
		for k, v := range cfg.Kinds {
			out.Kinds[k] = v
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	switch strings.ToLower(c.Token.SigningMethod) {
	case "", "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	case "hs256":
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	switch strings.ToLower(c.Password.Algorithm) {
	case "", "argon2id":
		if c.Password.Memory < 8192 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	case "bcrypt":
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 10 and 31")
		}
	default:
		return errors.New("unsupported Password algorithm")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.UnlockWindow <= 0 {
		return errors.New("Lockout UnlockWindow must be > 0")
	}
	if c.PasswordReset.TTL < time.Minute {
		return errors.New("PasswordReset TTL must be >= 1m")
	}
	if len(c.Lookup.Secret) < account.MinLookupSecretLength {
		return fmt.Errorf("Lookup Secret must be at least %d bytes", account.MinLookupSecretLength)
	}

	if len(c.Kinds) == 0 {
		return errors.New("Kinds must configure at least one account kind")
	}
	for kind, kc := range c.Kinds {
		if !kind.Valid() {
			return fmt.Errorf("Kinds contains unknown kind %q", kind)
		}
		u, err := url.Parse(kc.ResetLinkBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("Kinds[%s] ResetLinkBase must be an absolute URL", kind)
		}
		if !notify.KnownTemplate(kc.EmailTemplate) {
			return fmt.Errorf("Kinds[%s] EmailTemplate %q is unknown", kind, kc.EmailTemplate)
		}
	}

	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return errors.New("Throttle MaxAttempts must be > 0 when throttle is enabled")
		}
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0 when throttle is enabled")
		}
	}
	if c.Sessions.EnrichTimeout < 0 {
		return errors.New("Sessions EnrichTimeout must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}
