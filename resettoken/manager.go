// Package resettoken issues, validates and consumes single-use password
// reset tokens. Only a SHA-256 digest of each token is persisted; there is at
// most one row per account and issuing a new token overwrites it.
package resettoken

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/internal"
)

const DefaultTTL = 60 * time.Minute

// ErrNoRecord is returned by stores when the account has no reset row.
var ErrNoRecord = errors.New("resettoken: no record")

// Record is the persisted reset state of one account.
type Record struct {
	Kind      account.Kind
	AccountID string
	// TokenHash is nil once the token has been consumed.
	TokenHash *string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
	UsedAt    *time.Time
}

// Store is the persistence port. SaveResetToken upserts by (Kind, AccountID).
type Store interface {
	GetResetToken(ctx context.Context, kind account.Kind, accountID string) (*Record, error)
	SaveResetToken(ctx context.Context, rec Record) error
}

// Reason is the internal result of Validate. Callers map every non-OK reason
// to an externally generic message.
type Reason uint8

const (
	ReasonOK Reason = iota
	ReasonNotFound
	ReasonInactive
	ReasonInvalidToken
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonNotFound:
		return "not_found"
	case ReasonInactive:
		return "inactive"
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonExpired:
		return "expired"
	}
	return "unknown"
}

type Manager struct {
	ttl time.Duration
	now func() time.Time
}

func NewManager(ttl time.Duration, now func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{ttl: ttl, now: now}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a fresh token for accountID, replacing any previous one.
// The plaintext token is returned once and never stored.
func (m *Manager) Issue(ctx context.Context, store Store, kind account.Kind, accountID string) (string, error) {
	token, digest, err := internal.NewResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	now := m.now().UTC()
	rec := Record{
		Kind:      kind,
		AccountID: accountID,
		TokenHash: &digest,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := store.SaveResetToken(ctx, rec); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}
	return token, nil
}

// Validate checks, in order: the account exists, it is not INACTIVE, the
// stored unused token matches presented, and the token has not expired.
// The record is returned only with ReasonOK.
func (m *Manager) Validate(ctx context.Context, store Store, acct *account.Account, presented string) (*Record, Reason, error) {
	if acct == nil {
		return nil, ReasonNotFound, nil
	}
	if acct.Inactive {
		return nil, ReasonInactive, nil
	}

	rec, err := store.GetResetToken(ctx, acct.Kind, acct.ID)
	if errors.Is(err, ErrNoRecord) {
		return nil, ReasonInvalidToken, nil
	}
	if err != nil {
		return nil, ReasonInvalidToken, fmt.Errorf("load reset token: %w", err)
	}
	if rec.Used || rec.TokenHash == nil || presented == "" {
		return nil, ReasonInvalidToken, nil
	}
	if subtle.ConstantTimeCompare([]byte(*rec.TokenHash), []byte(internal.DigestToken(presented))) != 1 {
		return nil, ReasonInvalidToken, nil
	}
	if m.now().After(rec.ExpiresAt) {
		return nil, ReasonExpired, nil
	}
	return rec, ReasonOK, nil
}

// Consume marks rec used and clears its digest. It must run in the same
// transaction as the password update.
func (m *Manager) Consume(ctx context.Context, store Store, rec *Record) error {
	now := m.now().UTC()
	rec.Used = true
	rec.UsedAt = &now
	rec.TokenHash = nil
	if err := store.SaveResetToken(ctx, *rec); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	return nil
}
