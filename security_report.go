package marketauth

import (
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/notify"
)

// SecurityReport summarizes the security-relevant configuration of a built
// engine. It contains no key material.
type SecurityReport struct {
	SigningAlgorithm    string
	TokenTTL            time.Duration
	PasswordAlgorithm   string
	PasswordMinLength   int
	Argon2              PasswordConfigReport
	BcryptCost          int
	LockoutMaxAttempts  int
	LockoutWindow       time.Duration
	ResetTokenTTL       time.Duration
	VerificationKinds   []account.Kind
	ThrottleActive      bool
	OriginThrottle      bool
	AuditActive         bool
	NotificationsActive bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	signing := strings.ToLower(cfg.Token.SigningMethod)
	if signing == "" {
		signing = "ed25519"
	}
	algo := strings.ToLower(cfg.Password.Algorithm)
	if algo == "" {
		algo = "argon2id"
	}

	var kinds []account.Kind
	for k, kc := range cfg.Kinds {
		if kc.RequireVerification {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)

	r := SecurityReport{
		SigningAlgorithm:    signing,
		TokenTTL:            cfg.Token.TTL,
		PasswordAlgorithm:   algo,
		PasswordMinLength:   cfg.Password.MinLength,
		LockoutMaxAttempts:  cfg.Lockout.MaxAttempts,
		LockoutWindow:       cfg.Lockout.UnlockWindow,
		ResetTokenTTL:       e.resets.TTL(),
		VerificationKinds:   kinds,
		ThrottleActive:      e.throttle != nil,
		OriginThrottle:      e.throttle != nil && cfg.Throttle.EnableOriginThrottle,
		AuditActive:         e.audit != nil,
		NotificationsActive: !isDiscardNotifier(e.notifier),
	}
	if algo == "bcrypt" {
		r.BcryptCost = cfg.Password.BcryptCost
	} else {
		r.Argon2 = PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		}
	}
	return r
}

func isDiscardNotifier(n any) bool {
	switch n.(type) {
	case nil, notify.Discard, *notify.Discard:
		return true
	}
	return false
}
