package resettoken

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/marketauth/account"
)

type mapStore struct {
	rows map[string]Record
	err  error
}

func newMapStore() *mapStore { return &mapStore{rows: map[string]Record{}} }

func (s *mapStore) GetResetToken(_ context.Context, kind account.Kind, id string) (*Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.rows[string(kind)+"/"+id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &r, nil
}

func (s *mapStore) SaveResetToken(_ context.Context, rec Record) error {
	if s.err != nil {
		return s.err
	}
	s.rows[string(rec.Kind)+"/"+rec.AccountID] = rec
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testAccount() *account.Account {
	return &account.Account{ID: "acc-1", Kind: account.KindUser, Status: account.StatusActive}
}

func TestIssueValidateConsume(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(time.Hour, c.now)
	s := newMapStore()
	ctx := context.Background()
	acct := testAccount()

	token, err := m.Issue(ctx, s, acct.Kind, acct.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	stored := s.rows["user/acc-1"]
	if stored.TokenHash == nil || *stored.TokenHash == token {
		t.Fatalf("plaintext token must not be stored")
	}
	if !stored.ExpiresAt.Equal(c.t.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", stored.ExpiresAt)
	}

	rec, reason, err := m.Validate(ctx, s, acct, token)
	if err != nil || reason != ReasonOK || rec == nil {
		t.Fatalf("expected ok, got %v %v", reason, err)
	}
	if err := m.Consume(ctx, s, rec); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	_, reason, _ = m.Validate(ctx, s, acct, token)
	if reason != ReasonInvalidToken {
		t.Fatalf("consumed token must be invalid, got %v", reason)
	}
	if got := s.rows["user/acc-1"]; !got.Used || got.UsedAt == nil || got.TokenHash != nil {
		t.Fatalf("unexpected consumed row: %+v", got)
	}
}

func TestValidateOrder(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(time.Hour, c.now)
	s := newMapStore()
	ctx := context.Background()

	if _, reason, _ := m.Validate(ctx, s, nil, "x"); reason != ReasonNotFound {
		t.Fatalf("expected not found, got %v", reason)
	}

	acct := testAccount()
	token, _ := m.Issue(ctx, s, acct.Kind, acct.ID)

	inactive := acct.Clone()
	inactive.Deactivate()
	if _, reason, _ := m.Validate(ctx, s, inactive, token); reason != ReasonInactive {
		t.Fatalf("inactive must be checked before the token, got %v", reason)
	}

	if _, reason, _ := m.Validate(ctx, s, acct, "wrong"); reason != ReasonInvalidToken {
		t.Fatalf("expected invalid token, got %v", reason)
	}

	c.t = c.t.Add(time.Hour)
	if _, reason, _ := m.Validate(ctx, s, acct, token); reason != ReasonOK {
		t.Fatalf("token is valid up to and including expiry, got %v", reason)
	}
	c.t = c.t.Add(time.Second)
	if _, reason, _ := m.Validate(ctx, s, acct, token); reason != ReasonExpired {
		t.Fatalf("expected expired, got %v", reason)
	}
}

func TestIssueOverwritesPreviousToken(t *testing.T) {
	m := NewManager(0, nil)
	if m.TTL() != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", m.TTL())
	}
	s := newMapStore()
	ctx := context.Background()
	acct := testAccount()

	first, _ := m.Issue(ctx, s, acct.Kind, acct.ID)
	second, _ := m.Issue(ctx, s, acct.Kind, acct.ID)
	if first == second {
		t.Fatalf("tokens must be unique")
	}
	if _, reason, _ := m.Validate(ctx, s, acct, first); reason != ReasonInvalidToken {
		t.Fatalf("old token must stop working, got %v", reason)
	}
	if _, reason, _ := m.Validate(ctx, s, acct, second); reason != ReasonOK {
		t.Fatalf("new token must work, got %v", reason)
	}
}

func TestValidateNoRecordAndStoreError(t *testing.T) {
	m := NewManager(time.Hour, nil)
	s := newMapStore()
	ctx := context.Background()
	if _, reason, err := m.Validate(ctx, s, testAccount(), "x"); reason != ReasonInvalidToken || err != nil {
		t.Fatalf("expected invalid token without error, got %v %v", reason, err)
	}
	s.err = errors.New("db down")
	if _, _, err := m.Validate(ctx, s, testAccount(), "x"); err == nil {
		t.Fatalf("expected store error to surface")
	}
}
