// Package lockout applies the failed-attempt counting and timed auto-unlock
// rules to an account record. It performs no I/O; callers persist the
// mutated account inside the same transaction that read it.
package lockout

import (
	"time"

	"github.com/MrEthical07/marketauth/account"
)

const (
	DefaultMaxAttempts  = 5
	DefaultUnlockWindow = 24 * time.Hour
)

type Policy struct {
	MaxAttempts  int
	UnlockWindow time.Duration
}

func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, UnlockWindow: DefaultUnlockWindow}
}

// Failure is the outcome of recording one wrong password.
type Failure struct {
	// Counted is false when the account is exempt from counting.
	Counted bool
	// Locked is true when this failure moved the account into LOCKED.
	Locked bool
	// RemainingAttempts is MaxAttempts minus the new counter, floored at 0.
	RemainingAttempts int
	// RemainingLock is the full window when Locked is true.
	RemainingLock time.Duration
}

// RecordFailure increments the counter of a counting-eligible account and
// locks it once the counter reaches MaxAttempts. UNVERIFIED accounts are
// not counted. Callers must resolve an existing lock with CheckLocked first.
func (p Policy) RecordFailure(a *account.Account, now time.Time) Failure {
	if a.Status != account.StatusActive {
		return Failure{RemainingAttempts: p.remaining(a)}
	}

	a.FailedAttempts++
	if a.FailedAttempts >= p.MaxAttempts {
		_ = a.Lock(now)
		return Failure{Counted: true, Locked: true, RemainingLock: p.UnlockWindow}
	}
	return Failure{Counted: true, RemainingAttempts: p.remaining(a)}
}

// CheckLocked resolves a LOCKED account against the unlock window. When the
// window has elapsed the account is returned to ACTIVE with a cleared
// counter and unlocked is true; otherwise remaining is the time left.
// Accounts that are not locked report unlocked=false, remaining=0.
func (p Policy) CheckLocked(a *account.Account, now time.Time) (unlocked bool, remaining time.Duration) {
	if a.Status != account.StatusLocked || a.LockedAt == nil {
		return false, 0
	}
	elapsed := now.Sub(*a.LockedAt)
	if elapsed >= p.UnlockWindow {
		a.Unlock()
		return true, 0
	}
	return false, p.UnlockWindow - elapsed
}

// RecordSuccess resets the failure counter and stamps the login.
func (p Policy) RecordSuccess(a *account.Account, now time.Time) {
	t := now
	a.FailedAttempts = 0
	a.SuccessfulAttempts++
	a.LastLoginAt = &t
}

func (p Policy) remaining(a *account.Account) int {
	r := p.MaxAttempts - a.FailedAttempts
	if r < 0 {
		return 0
	}
	return r
}
