package account

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind selects which population an account belongs to. Persistence is keyed
// by kind, so the same email can exist once per kind.
type Kind string

const (
	KindUser   Kind = "user"
	KindVendor Kind = "vendor"
	KindAdmin  Kind = "admin"
)

// Kinds lists every supported account kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindUser, KindVendor, KindAdmin}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindVendor, KindAdmin:
		return true
	}
	return false
}

// ParseKind converts s (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Status is the stored lifecycle state of an account.
//
// StatusInactive is never stored; it is reported by [Account.EffectiveStatus]
// when the administrative Inactive flag is set.
type Status uint8

const (
	StatusUnverified Status = iota
	StatusActive
	StatusLocked
	StatusInactive
)

func (s Status) String() string {
	switch s {
	case StatusUnverified:
		return "UNVERIFIED"
	case StatusActive:
		return "ACTIVE"
	case StatusLocked:
		return "LOCKED"
	case StatusInactive:
		return "INACTIVE"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseStatus is the inverse of [Status.String] for stored states.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNVERIFIED":
		return StatusUnverified, nil
	case "ACTIVE":
		return StatusActive, nil
	case "LOCKED":
		return StatusLocked, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

var (
	ErrUnknownKind     = errors.New("account: unknown kind")
	ErrUnknownStatus   = errors.New("account: unknown status")
	ErrLockedAtInvalid = errors.New("account: locked_at must be set iff status is LOCKED")
	ErrTransition      = errors.New("account: transition not allowed")
)

// Account is one persisted identity of a given kind.
type Account struct {
	ID          string
	Kind        Kind
	LookupHash  string
	Email       string
	DisplayName string

	PasswordHash string

	Status   Status
	Inactive bool

	FailedAttempts     int
	SuccessfulAttempts int
	LastLoginAt        *time.Time
	LockedAt           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InitialStatus returns the state a freshly registered account starts in.
func InitialStatus(requireVerification bool) Status {
	if requireVerification {
		return StatusUnverified
	}
	return StatusActive
}

// EffectiveStatus folds the administrative flag into the reported state.
func (a *Account) EffectiveStatus() Status {
	if a.Inactive {
		return StatusInactive
	}
	return a.Status
}

// Validate checks the structural invariants every store write must hold.
func (a *Account) Validate() error {
	if !a.Kind.Valid() {
		return ErrUnknownKind
	}
	switch a.Status {
	case StatusUnverified, StatusActive, StatusLocked:
	default:
		return ErrUnknownStatus
	}
	if (a.Status == StatusLocked) != (a.LockedAt != nil) {
		return ErrLockedAtInvalid
	}
	return nil
}

// Lock moves an ACTIVE account into LOCKED, stamping LockedAt.
func (a *Account) Lock(now time.Time) error {
	if a.Status != StatusActive {
		return fmt.Errorf("%w: lock from %s", ErrTransition, a.Status)
	}
	t := now
	a.Status = StatusLocked
	a.LockedAt = &t
	return nil
}

// Unlock returns a LOCKED account to ACTIVE and clears the failure counter.
// Unlocking an account that is not locked only clears the counter.
func (a *Account) Unlock() {
	if a.Status == StatusLocked {
		a.Status = StatusActive
	}
	a.LockedAt = nil
	a.FailedAttempts = 0
}

// MarkVerified handles the external verification event.
func (a *Account) MarkVerified() error {
	switch a.Status {
	case StatusUnverified:
		a.Status = StatusActive
		return nil
	case StatusActive, StatusLocked:
		return nil
	}
	return fmt.Errorf("%w: verify from %s", ErrTransition, a.Status)
}

func (a *Account) Deactivate() { a.Inactive = true }

func (a *Account) Reactivate() { a.Inactive = false }

// Clone returns a deep copy so stores never share pointers with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	if a.LockedAt != nil {
		t := *a.LockedAt
		c.LockedAt = &t
	}
	return &c
}

// Summary is the non-sensitive view of an account returned to clients.
type Summary struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

func (a *Account) Summary() Summary {
	return Summary{
		ID:          a.ID,
		Kind:        a.Kind,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Status:      a.EffectiveStatus().String(),
	}
}
