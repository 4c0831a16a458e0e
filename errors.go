package marketauth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MrEthical07/marketauth/resettoken"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup key.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned for a wrong password. Use errors.As
	// with *CredentialError for the remaining attempt count.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout window runs. Use
	// errors.As with *LockedError for the remaining duration.
	ErrAccountLocked = errors.New("account locked")
	ErrAccountUnverified = errors.New("account unverified")
	ErrAccountInactive   = errors.New("account inactive")
	// ErrInvalidOrExpiredToken covers an absent, mismatched, used or expired
	// reset token. *ResetError keeps the precise reason.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrPasswordReuse         = errors.New("new password must be different from current password")
	ErrPasswordPolicy        = errors.New("password policy violation")
	ErrValidation            = errors.New("validation failed")
	// ErrTransient wraps storage or network failures of a collaborator. No
	// partial state is left behind when it is returned.
	ErrTransient             = errors.New("transient backend failure")
	ErrAccountExists         = errors.New("account already exists")
	ErrLoginRateLimited      = errors.New("login rate limited")
	ErrSessionCreationFailed = errors.New("session creation failed")
	ErrUnknownKind           = errors.New("unknown account kind")
	ErrInvalidSessionToken   = errors.New("invalid session token")
)

// CredentialError reports a wrong password together with the number of
// attempts left before the account locks. Remaining is -1 when the account
// is exempt from counting.
type CredentialError struct {
	Remaining int
}

func (e *CredentialError) Error() string {
	if e.Remaining < 0 {
		return ErrInvalidCredentials.Error()
	}
	return fmt.Sprintf("%s: %d attempt(s) remaining", ErrInvalidCredentials, e.Remaining)
}

func (e *CredentialError) Unwrap() error { return ErrInvalidCredentials }

// LockedError reports a locked account and the time until auto-unlock.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: try again in %d hour(s)", ErrAccountLocked, e.RemainingHours())
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// RemainingHours rounds the remaining lock time up to whole hours.
func (e *LockedError) RemainingHours() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Hours()))
}

// ResetError is returned by ResetPassword. Reason is the internal
// classification; the wrapped sentinel is what callers should branch on.
type ResetError struct {
	Reason resettoken.Reason
}

func (e *ResetError) Error() string {
	switch e.Reason {
	case resettoken.ReasonExpired:
		return ErrInvalidOrExpiredToken.Error() + ": request a new reset link"
	}
	return e.Unwrap().Error()
}

func (e *ResetError) Unwrap() error {
	switch e.Reason {
	case resettoken.ReasonNotFound:
		return ErrAccountNotFound
	case resettoken.ReasonInactive:
		return ErrAccountInactive
	}
	return ErrInvalidOrExpiredToken
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}
