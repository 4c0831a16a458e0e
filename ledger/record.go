package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrEthical07/marketauth/account"
)

// Unavailable is stored for any metadata field that could not be resolved.
const Unavailable = "unavailable"

// Outcome says whether a login attempt produced a usable session.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FailureReason enumerates why a login attempt failed.
type FailureReason string

const (
	ReasonNone               FailureReason = ""
	ReasonNotFound           FailureReason = "not_found"
	ReasonInvalidCredentials FailureReason = "invalid_credentials"
	ReasonUnverified         FailureReason = "unverified"
	ReasonLocked             FailureReason = "locked"
	ReasonInactive           FailureReason = "inactive"
	ReasonThrottled          FailureReason = "throttled"
)

// ErrNotFound is returned by stores when no row matches.
var ErrNotFound = errors.New("ledger: session not found")

// Metadata describes where a login attempt came from.
type Metadata struct {
	Origin         string
	ClientIdentity string
	Browser        string
	OS             string
	Device         string
	Location       string
}

// normalized replaces empty descriptive fields with Unavailable. Origin and
// ClientIdentity are kept as given.
func (m Metadata) normalized() Metadata {
	for _, f := range []*string{&m.Browser, &m.OS, &m.Device, &m.Location} {
		if *f == "" {
			*f = Unavailable
		}
	}
	return m
}

// Record is one login attempt. Rows are append-only apart from LogoutAt,
// which is set at most once and only on successful sessions.
type Record struct {
	SessionID     string
	Kind          account.Kind
	AccountID     string
	Metadata      Metadata
	Outcome       Outcome
	FailureReason FailureReason
	LoginAt       time.Time
	LogoutAt      *time.Time
}

// Open reports whether the record is a successful session not yet closed.
func (r *Record) Open() bool {
	return r.Outcome == OutcomeSuccess && r.LogoutAt == nil
}

// Store persists session records.
//
// Close and CloseMostRecentOpen must be a single conditional update on
// logout_at IS NULL so concurrent closes are safe; they report false when no
// row was changed.
type Store interface {
	InsertSession(ctx context.Context, rec Record) error
	CloseSession(ctx context.Context, kind account.Kind, sessionID, accountID string, at time.Time) (bool, error)
	CloseMostRecentOpen(ctx context.Context, kind account.Kind, accountID, origin string, at time.Time) (bool, error)
	GetSession(ctx context.Context, kind account.Kind, sessionID string) (*Record, error)
	ListSessions(ctx context.Context, kind account.Kind, accountID string, limit int) ([]Record, error)
}

// TrackingID derives a stable, non-reversible subject id for attempts whose
// account could not be resolved. lookup is already a keyed hash; the
// tracking id truncates a second digest of it.
func TrackingID(lookup string) string {
	sum := sha256.Sum256([]byte("ledger-tracking:" + lookup))
	return "trk_" + hex.EncodeToString(sum[:12])
}
