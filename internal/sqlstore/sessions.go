package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/internal/dbx"
	"github.com/MrEthical07/marketauth/ledger"
)

const sessionColumns = `session_id, kind, account_id, origin, client_identity, browser, os, device, location,
	outcome, failure_reason, login_at, logout_at`

type sessions struct {
	q dbx.DBTX
	d Dialect
}

func (s *sessions) InsertSession(ctx context.Context, rec ledger.Record) error {
	q := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	m := rec.Metadata
	_, err := s.q.ExecContext(ctx, s.d.rebind(q),
		rec.SessionID, string(rec.Kind), rec.AccountID, m.Origin, m.ClientIdentity, m.Browser, m.OS, m.Device, m.Location,
		string(rec.Outcome), string(rec.FailureReason), rec.LoginAt.UTC(), nullTime(rec.LogoutAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *sessions) CloseSession(ctx context.Context, kind account.Kind, sessionID, accountID string, at time.Time) (bool, error) {
	q := `UPDATE sessions SET logout_at = ?
		WHERE kind = ? AND session_id = ? AND account_id = ? AND outcome = 'success' AND logout_at IS NULL`
	return s.exec(ctx, q, at.UTC(), string(kind), sessionID, accountID)
}

func (s *sessions) CloseMostRecentOpen(ctx context.Context, kind account.Kind, accountID, origin string, at time.Time) (bool, error) {
	q := `UPDATE sessions SET logout_at = ?
		WHERE logout_at IS NULL AND session_id = (
			SELECT session_id FROM sessions
			WHERE kind = ? AND account_id = ? AND origin = ? AND outcome = 'success' AND logout_at IS NULL
			ORDER BY login_at DESC, seq DESC
			LIMIT 1
		)`
	return s.exec(ctx, q, at.UTC(), string(kind), accountID, origin)
}

func (s *sessions) exec(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := s.q.ExecContext(ctx, s.d.rebind(q), args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *sessions) GetSession(ctx context.Context, kind account.Kind, sessionID string) (*ledger.Record, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE kind = ? AND session_id = ?`
	rec, err := scanSession(s.q.QueryRowContext(ctx, s.d.rebind(q), string(kind), sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (s *sessions) ListSessions(ctx context.Context, kind account.Kind, accountID string, limit int) ([]ledger.Record, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE kind = ? AND account_id = ?
		ORDER BY login_at DESC, seq DESC LIMIT ?`
	rows, err := s.q.QueryContext(ctx, s.d.rebind(q), string(kind), accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*ledger.Record, error) {
	var (
		rec                   ledger.Record
		kind, outcome, reason string
		logout                sql.NullTime
	)
	m := &rec.Metadata
	if err := row.Scan(&rec.SessionID, &kind, &rec.AccountID, &m.Origin, &m.ClientIdentity, &m.Browser, &m.OS, &m.Device, &m.Location,
		&outcome, &reason, &rec.LoginAt, &logout); err != nil {
		return nil, err
	}
	rec.Kind = account.Kind(kind)
	rec.Outcome = ledger.Outcome(outcome)
	rec.FailureReason = ledger.FailureReason(reason)
	rec.LogoutAt = timePtr(logout)
	return &rec, nil
}
