// Package sqlstore implements store.Store over database/sql. The postgres
// and sqlite adapters supply a Dialect; all SQL is written once with ?
// placeholders and rebound per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/internal/dbx"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/resettoken"
	"github.com/MrEthical07/marketauth/store"
)

// Dialect captures the differences between supported databases.
type Dialect struct {
	Name string
	// DollarPlaceholders rewrites ? into $1, $2, ...
	DollarPlaceholders bool
	// LockClause is appended to account reads inside a transaction.
	LockClause string
	// IsUniqueViolation reports whether err is a unique/primary key conflict.
	IsUniqueViolation func(err error) bool
	TxOptions         *sql.TxOptions
}

func (d Dialect) rebind(q string) string {
	if !d.DollarPlaceholders {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return dbx.WithTx(ctx, s.db, s.dialect.TxOptions, func(ctx context.Context, q dbx.DBTX) error {
		return fn(&tx{q: q, d: s.dialect})
	})
}

func (s *Store) Sessions() ledger.Store {
	return &sessions{q: s.db, d: s.dialect}
}

const accountColumns = `kind, id, lookup_hash, email, display_name, password_hash, status, inactive,
	failed_attempts, successful_attempts, last_login_at, locked_at, created_at, updated_at`

type tx struct {
	q dbx.DBTX
	d Dialect
}

func (t *tx) AccountByLookup(ctx context.Context, kind account.Kind, lookup string) (*account.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE kind = ? AND lookup_hash = ?` + t.d.LockClause
	return t.scanAccount(t.q.QueryRowContext(ctx, t.d.rebind(q), string(kind), lookup))
}

func (t *tx) AccountByID(ctx context.Context, kind account.Kind, id string) (*account.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE kind = ? AND id = ?` + t.d.LockClause
	return t.scanAccount(t.q.QueryRowContext(ctx, t.d.rebind(q), string(kind), id))
}

func (t *tx) scanAccount(row *sql.Row) (*account.Account, error) {
	var (
		a                   account.Account
		kind, status        string
		lastLogin, lockedAt sql.NullTime
	)
	err := row.Scan(&kind, &a.ID, &a.LookupHash, &a.Email, &a.DisplayName, &a.PasswordHash, &status, &a.Inactive,
		&a.FailedAttempts, &a.SuccessfulAttempts, &lastLogin, &lockedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.Kind = account.Kind(kind)
	if a.Status, err = account.ParseStatus(status); err != nil {
		return nil, err
	}
	a.LastLoginAt = timePtr(lastLogin)
	a.LockedAt = timePtr(lockedAt)
	return &a, nil
}

func (t *tx) CreateAccount(ctx context.Context, a *account.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	q := `INSERT INTO accounts (` + accountColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.q.ExecContext(ctx, t.d.rebind(q),
		string(a.Kind), a.ID, a.LookupHash, a.Email, a.DisplayName, a.PasswordHash, a.Status.String(), a.Inactive,
		a.FailedAttempts, a.SuccessfulAttempts, nullTime(a.LastLoginAt), nullTime(a.LockedAt), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		if t.d.IsUniqueViolation != nil && t.d.IsUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *tx) UpdateAccount(ctx context.Context, a *account.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	q := `UPDATE accounts SET email = ?, display_name = ?, password_hash = ?, status = ?, inactive = ?,
		failed_attempts = ?, successful_attempts = ?, last_login_at = ?, locked_at = ?, updated_at = ?
		WHERE kind = ? AND id = ?`
	res, err := t.q.ExecContext(ctx, t.d.rebind(q),
		a.Email, a.DisplayName, a.PasswordHash, a.Status.String(), a.Inactive,
		a.FailedAttempts, a.SuccessfulAttempts, nullTime(a.LastLoginAt), nullTime(a.LockedAt), a.UpdatedAt.UTC(),
		string(a.Kind), a.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) GetResetToken(ctx context.Context, kind account.Kind, accountID string) (*resettoken.Record, error) {
	q := `SELECT token_hash, expires_at, used, created_at, used_at FROM reset_tokens WHERE kind = ? AND account_id = ?`
	var (
		rec    = resettoken.Record{Kind: kind, AccountID: accountID}
		hash   sql.NullString
		usedAt sql.NullTime
	)
	err := t.q.QueryRowContext(ctx, t.d.rebind(q), string(kind), accountID).
		Scan(&hash, &rec.ExpiresAt, &rec.Used, &rec.CreatedAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resettoken.ErrNoRecord
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if hash.Valid {
		rec.TokenHash = &hash.String
	}
	rec.UsedAt = timePtr(usedAt)
	return &rec, nil
}

func (t *tx) SaveResetToken(ctx context.Context, rec resettoken.Record) error {
	q := `INSERT INTO reset_tokens (kind, account_id, token_hash, expires_at, used, created_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, account_id) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			used = excluded.used,
			created_at = excluded.created_at,
			used_at = excluded.used_at`
	var hash sql.NullString
	if rec.TokenHash != nil {
		hash = sql.NullString{String: *rec.TokenHash, Valid: true}
	}
	_, err := t.q.ExecContext(ctx, t.d.rebind(q),
		string(rec.Kind), rec.AccountID, hash, rec.ExpiresAt.UTC(), rec.Used, rec.CreatedAt.UTC(), nullTime(rec.UsedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
