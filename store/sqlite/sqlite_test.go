package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/resettoken"
	"github.com/MrEthical07/marketauth/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(ctx, db))
	return New(db)
}

func seed(t *testing.T, s store.Store, a *account.Account) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateAccount(ctx, a) }))
}

func baseAccount(now time.Time) *account.Account {
	return &account.Account{
		ID: "a1", Kind: account.KindVendor, LookupHash: "h1", Email: "v@example.com", DisplayName: "Vendor",
		PasswordHash: "hash", Status: account.StatusActive, CreatedAt: now, UpdatedAt: now,
	}
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seed(t, s, baseAccount(now))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.AccountByLookup(ctx, account.KindVendor, "h1")
		require.NoError(t, err)
		a.FailedAttempts = 5
		require.NoError(t, a.Lock(now))
		return tx.UpdateAccount(ctx, a)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.AccountByID(ctx, account.KindVendor, "a1")
		require.NoError(t, err)
		assert.Equal(t, account.StatusLocked, a.Status)
		require.NotNil(t, a.LockedAt)
		assert.True(t, a.LockedAt.Equal(now))
		assert.Equal(t, 5, a.FailedAttempts)
		assert.Nil(t, a.LastLoginAt)
		return nil
	})
	require.NoError(t, err)
}

func TestDuplicateLookupRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seed(t, s, baseAccount(now))

	dup := baseAccount(now)
	dup.ID = "a2"
	err := s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateAccount(ctx, dup) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	other := baseAccount(now)
	other.ID = "a2"
	other.Kind = account.KindUser
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateAccount(ctx, other) }),
		"same email under another kind is allowed")
}

func TestResetTokenUpsertAndConsume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seed(t, s, baseAccount(now))

	m := resettoken.NewManager(time.Hour, func() time.Time { return now })
	var token string
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := m.Issue(ctx, tx, account.KindVendor, "a1"); err != nil {
			return err
		}
		var err error
		token, err = m.Issue(ctx, tx, account.KindVendor, "a1")
		return err
	}))

	acct := baseAccount(now)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		rec, reason, err := m.Validate(ctx, tx, acct, token)
		require.NoError(t, err)
		require.Equal(t, resettoken.ReasonOK, reason)
		assert.True(t, rec.ExpiresAt.Equal(now.Add(time.Hour)))
		return m.Consume(ctx, tx, rec)
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.GetResetToken(ctx, account.KindVendor, "a1")
		require.NoError(t, err)
		assert.True(t, rec.Used)
		assert.Nil(t, rec.TokenHash)
		assert.NotNil(t, rec.UsedAt)
		_, reason, _ := m.Validate(ctx, tx, acct, token)
		assert.Equal(t, resettoken.ReasonInvalidToken, reason)
		return nil
	}))
}

func TestSessionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	lg := ledger.New(s.Sessions(), ledger.WithClock(func() time.Time { return clock }))

	meta := ledger.Metadata{Origin: "10.0.0.1", ClientIdentity: "curl/8"}
	lg.Open(ctx, account.KindAdmin, "a1", meta, ledger.ReasonInvalidCredentials)
	clock = base.Add(time.Minute)
	first, err := lg.OpenSession(ctx, account.KindAdmin, "a1", meta)
	require.NoError(t, err)
	clock = base.Add(2 * time.Minute)
	second, err := lg.OpenSession(ctx, account.KindAdmin, "a1", meta)
	require.NoError(t, err)

	ok, err := lg.CloseMostRecentOpen(ctx, account.KindAdmin, "a1", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := lg.Get(ctx, account.KindAdmin, second.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, got.LogoutAt, "newest session must be closed")
	assert.Equal(t, ledger.Unavailable, got.Metadata.Browser)

	ok, err = lg.Close(ctx, account.KindAdmin, first.SessionID, "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = lg.Close(ctx, account.KindAdmin, first.SessionID, "a1")
	assert.False(t, ok)

	recs, err := lg.History(ctx, account.KindAdmin, "a1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, second.SessionID, recs[0].SessionID)
	assert.Equal(t, ledger.OutcomeFailure, recs[2].Outcome)
}
