package marketauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/internal/rate"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/store"
)

// loginOutcome carries the decision made inside the account transaction.
// Domain rejections are not transaction errors: counter updates must commit
// even when the login is refused.
type loginOutcome struct {
	acct         *account.Account
	err          error
	reason       ledger.FailureReason
	locked       bool
	autoUnlocked bool
}

// Login authenticates an account of the given kind and, on success, opens a
// ledger session and returns a token bound to it.
//
// Checks run in this order: account exists, password, verification, lock
// (with timed auto-unlock), inactive flag. Every attempt that reaches an
// account lookup leaves a ledger record.
func (e *Engine) Login(ctx context.Context, kind account.Kind, req LoginRequest) (*LoginResult, error) {
	start := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()

	if _, err := e.kindConfig(kind); err != nil {
		return nil, err
	}
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	lookup := e.lookup.Hash(req.Email)
	meta := e.metadata(ctx, req.Origin, req.ClientIdentity)

	if err := e.checkThrottle(ctx, kind, lookup, meta); err != nil {
		return nil, err
	}

	var out loginOutcome
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		out = loginOutcome{}
		acct, err := tx.AccountByLookup(ctx, kind, lookup)
		if errors.Is(err, store.ErrNotFound) {
			out.err = ErrAccountNotFound
			out.reason = ledger.ReasonNotFound
			return nil
		}
		if err != nil {
			return err
		}
		out.acct = acct

		now := e.now()
		if !e.verifyPassword(ctx, req.Password, acct) {
			return e.loginWrongPassword(ctx, tx, acct, now, &out)
		}
		return e.loginCorrectPassword(ctx, tx, acct, now, &out)
	})
	if err != nil {
		e.log.Error(ctx, "login transaction failed", "kind", string(kind), "error", err)
		return nil, transient("login", err)
	}

	if out.autoUnlocked {
		e.metricInc(MetricAccountAutoUnlocked)
		e.emitAudit(ctx, kind, auditEventAccountAutoUnlocked, true, out.acct.ID, "", nil, nil)
	}
	if out.locked {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, kind, auditEventAccountLocked, true, out.acct.ID, "", nil, nil)
	}
	if out.err != nil {
		return nil, e.loginRejected(ctx, kind, lookup, meta, out)
	}
	return e.loginAccepted(ctx, kind, lookup, meta, out.acct)
}

func (e *Engine) checkThrottle(ctx context.Context, kind account.Kind, lookup string, meta ledger.Metadata) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.CheckLogin(ctx, string(kind), lookup, meta.Origin)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricLoginRateLimited)
		e.ledger.Open(ctx, kind, ledger.TrackingID(lookup), meta, ledger.ReasonThrottled)
		e.emitAudit(ctx, kind, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, nil)
		return ErrLoginRateLimited
	default:
		// The throttle is advisory; the persisted lockout still applies.
		e.log.Warn(ctx, "login throttle unavailable", "kind", string(kind), "error", err)
		return nil
	}
}

// verifyPassword treats an unreadable stored hash as a mismatch.
func (e *Engine) verifyPassword(ctx context.Context, plain string, acct *account.Account) bool {
	ok, err := e.hasher.Verify(plain, acct.PasswordHash)
	if err != nil {
		e.log.Error(ctx, "stored password hash unreadable", "kind", string(acct.Kind), "account_id", acct.ID, "error", err)
		return false
	}
	return ok
}

func (e *Engine) loginWrongPassword(ctx context.Context, tx store.Tx, acct *account.Account, now time.Time, out *loginOutcome) error {
	out.reason = ledger.ReasonInvalidCredentials

	switch acct.Status {
	case account.StatusUnverified:
		out.err = &CredentialError{Remaining: -1}
		return nil
	case account.StatusLocked:
		unlocked, remaining := e.policy.CheckLocked(acct, now)
		if !unlocked {
			out.err = &LockedError{Remaining: remaining}
			out.reason = ledger.ReasonLocked
			return nil
		}
		out.autoUnlocked = true
	}

	f := e.policy.RecordFailure(acct, now)
	switch {
	case f.Locked:
		out.locked = true
		out.err = &LockedError{Remaining: f.RemainingLock}
	case f.Counted:
		out.err = &CredentialError{Remaining: f.RemainingAttempts}
	default:
		out.err = &CredentialError{Remaining: -1}
	}
	acct.UpdatedAt = now
	return tx.UpdateAccount(ctx, acct)
}

func (e *Engine) loginCorrectPassword(ctx context.Context, tx store.Tx, acct *account.Account, now time.Time, out *loginOutcome) error {
	if acct.Status == account.StatusUnverified {
		out.err = ErrAccountUnverified
		out.reason = ledger.ReasonUnverified
		return nil
	}

	if acct.Status == account.StatusLocked {
		unlocked, remaining := e.policy.CheckLocked(acct, now)
		if !unlocked {
			out.err = &LockedError{Remaining: remaining}
			out.reason = ledger.ReasonLocked
			return nil
		}
		out.autoUnlocked = true
	}

	if acct.Inactive {
		out.err = ErrAccountInactive
		out.reason = ledger.ReasonInactive
		if out.autoUnlocked {
			acct.UpdatedAt = now
			return tx.UpdateAccount(ctx, acct)
		}
		return nil
	}

	e.policy.RecordSuccess(acct, now)
	acct.UpdatedAt = now
	return tx.UpdateAccount(ctx, acct)
}

func (e *Engine) loginRejected(ctx context.Context, kind account.Kind, lookup string, meta ledger.Metadata, out loginOutcome) error {
	subject := ledger.TrackingID(lookup)
	accountID := ""
	if out.acct != nil {
		subject = out.acct.ID
		accountID = out.acct.ID
	}
	rec := e.ledger.Open(ctx, kind, subject, meta, out.reason)

	switch {
	case errors.Is(out.err, ErrAccountNotFound):
		e.metricInc(MetricLoginNotFound)
	case errors.Is(out.err, ErrAccountUnverified):
		e.metricInc(MetricLoginUnverified)
	case errors.Is(out.err, ErrAccountInactive):
		e.metricInc(MetricLoginInactive)
	case errors.Is(out.err, ErrAccountLocked) && !out.locked:
		e.metricInc(MetricLoginLockedRejected)
	}
	e.metricInc(MetricLoginFailure)

	if e.throttle != nil && out.reason != ledger.ReasonUnverified && out.reason != ledger.ReasonInactive {
		if err := e.throttle.IncrementLogin(ctx, string(kind), lookup, meta.Origin); err != nil {
			e.log.Warn(ctx, "login throttle increment failed", "kind", string(kind), "error", err)
		}
	}

	e.emitAudit(ctx, kind, auditEventLoginFailure, false, accountID, rec.SessionID, out.err, func() map[string]string {
		m := map[string]string{"reason": string(out.reason)}
		var ce *CredentialError
		if errors.As(out.err, &ce) && ce.Remaining >= 0 {
			m["remaining_attempts"] = strconv.Itoa(ce.Remaining)
		}
		return m
	})
	return out.err
}

func (e *Engine) loginAccepted(ctx context.Context, kind account.Kind, lookup string, meta ledger.Metadata, acct *account.Account) (*LoginResult, error) {
	rec, err := e.ledger.OpenSession(ctx, kind, acct.ID, meta)
	if err != nil {
		e.metricInc(MetricSessionLedgerWriteFailure)
		e.log.Error(ctx, "session ledger write failed", "kind", string(kind), "account_id", acct.ID, "error", err)
		e.emitAudit(ctx, kind, auditEventLoginFailure, false, acct.ID, "", ErrSessionCreationFailed, nil)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	token, expiresAt, err := e.issuer.IssueForKind(string(kind), acct.ID, rec.SessionID)
	if err != nil {
		if _, cerr := e.ledger.Close(ctx, kind, rec.SessionID, acct.ID); cerr != nil {
			e.log.Warn(ctx, "closing orphaned session failed", "session_id", rec.SessionID, "error", cerr)
		}
		e.log.Error(ctx, "token issue failed", "kind", string(kind), "account_id", acct.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	if e.throttle != nil {
		if err := e.throttle.ResetLogin(ctx, string(kind), lookup); err != nil {
			e.log.Warn(ctx, "login throttle reset failed", "kind", string(kind), "error", err)
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, kind, auditEventLoginSuccess, true, acct.ID, rec.SessionID, nil, nil)

	return &LoginResult{
		Token:     token,
		SessionID: rec.SessionID,
		ExpiresAt: expiresAt,
		Account:   acct.Summary(),
	}, nil
}
