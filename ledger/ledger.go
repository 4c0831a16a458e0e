package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/internal"
	"github.com/MrEthical07/marketauth/logging"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// Ledger writes and closes session records on top of a Store.
type Ledger struct {
	store   Store
	log     logging.Logger
	now     func() time.Time
	onError func()
}

type Option func(*Ledger)

func WithLogger(l logging.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) {
		if now != nil {
			lg.now = now
		}
	}
}

// WithErrorHook registers a callback run whenever a best-effort write fails.
func WithErrorHook(fn func()) Option {
	return func(lg *Ledger) { lg.onError = fn }
}

func New(store Store, opts ...Option) *Ledger {
	lg := &Ledger{store: store, log: logging.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(lg)
	}
	return lg
}

// Open appends a record for a failed attempt. It never returns an error: a
// store failure is logged and the unpersisted record is still returned.
func (l *Ledger) Open(ctx context.Context, kind account.Kind, subject string, meta Metadata, reason FailureReason) Record {
	rec, err := l.newRecord(kind, subject, meta, OutcomeFailure, reason)
	if err == nil {
		err = l.store.InsertSession(ctx, rec)
	}
	if err != nil {
		l.log.Warn(ctx, "session ledger write failed", "kind", kind, "reason", reason, "err", err)
		if l.onError != nil {
			l.onError()
		}
	}
	return rec
}

// OpenSession appends the record for a successful login. The caller must not
// issue a token when this fails.
func (l *Ledger) OpenSession(ctx context.Context, kind account.Kind, accountID string, meta Metadata) (Record, error) {
	rec, err := l.newRecord(kind, accountID, meta, OutcomeSuccess, ReasonNone)
	if err != nil {
		return Record{}, err
	}
	if err := l.store.InsertSession(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("insert session: %w", err)
	}
	return rec, nil
}

// Close sets the logout time on an open session owned by accountID. It
// returns false without error if the session is unknown, already closed,
// failed, or owned by another account.
func (l *Ledger) Close(ctx context.Context, kind account.Kind, sessionID, accountID string) (bool, error) {
	if sessionID == "" || accountID == "" {
		return false, nil
	}
	return l.store.CloseSession(ctx, kind, sessionID, accountID, l.now())
}

// CloseMostRecentOpen closes the newest open session for accountID from
// origin. It is the fallback when the caller no longer has a valid token.
func (l *Ledger) CloseMostRecentOpen(ctx context.Context, kind account.Kind, accountID, origin string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	return l.store.CloseMostRecentOpen(ctx, kind, accountID, origin, l.now())
}

// Get returns one session record.
func (l *Ledger) Get(ctx context.Context, kind account.Kind, sessionID string) (*Record, error) {
	return l.store.GetSession(ctx, kind, sessionID)
}

// History returns the newest-first login records for an account. limit is
// clamped to [1, MaxHistoryLimit]; 0 means DefaultHistoryLimit.
func (l *Ledger) History(ctx context.Context, kind account.Kind, accountID string, limit int) ([]Record, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	recs, err := l.store.ListSessions(ctx, kind, accountID, limit)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return recs, err
}

func (l *Ledger) newRecord(kind account.Kind, subject string, meta Metadata, outcome Outcome, reason FailureReason) (Record, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return Record{}, fmt.Errorf("session id: %w", err)
	}
	return Record{
		SessionID:     sid.String(),
		Kind:          kind,
		AccountID:     subject,
		Metadata:      meta.normalized(),
		Outcome:       outcome,
		FailureReason: reason,
		LoginAt:       l.now().UTC(),
	}, nil
}
