package internaldefs

import (
	"github.com/MrEthical07/marketauth"
)

type CounterDef struct {
	ID   marketauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   marketauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: marketauth.MetricLoginSuccess, Name: "marketauth_login_success_total", Help: "Successful logins."},
	{ID: marketauth.MetricLoginFailure, Name: "marketauth_login_failure_total", Help: "Rejected logins of any reason."},
	{ID: marketauth.MetricLoginNotFound, Name: "marketauth_login_not_found_total", Help: "Logins for an unknown email."},
	{ID: marketauth.MetricLoginUnverified, Name: "marketauth_login_unverified_total", Help: "Logins rejected because the account is unverified."},
	{ID: marketauth.MetricLoginInactive, Name: "marketauth_login_inactive_total", Help: "Logins rejected because the account is inactive."},
	{ID: marketauth.MetricLoginLockedRejected, Name: "marketauth_login_locked_rejected_total", Help: "Logins rejected while a lock was in force."},
	{ID: marketauth.MetricLoginRateLimited, Name: "marketauth_login_rate_limited_total", Help: "Logins refused by the throttle."},
	{ID: marketauth.MetricAccountLocked, Name: "marketauth_account_locked_total", Help: "Accounts moved into LOCKED."},
	{ID: marketauth.MetricAccountAutoUnlocked, Name: "marketauth_account_auto_unlocked_total", Help: "Locks lifted because the window elapsed."},
	{ID: marketauth.MetricSessionCreated, Name: "marketauth_session_created_total", Help: "Sessions opened in the ledger."},
	{ID: marketauth.MetricSessionLedgerWriteFailure, Name: "marketauth_session_ledger_write_failure_total", Help: "Failed session ledger writes."},
	{ID: marketauth.MetricLogout, Name: "marketauth_logout_total", Help: "Sessions closed by token."},
	{ID: marketauth.MetricLogoutFallback, Name: "marketauth_logout_fallback_total", Help: "Logouts with an expired token."},
	{ID: marketauth.MetricLogoutAll, Name: "marketauth_logout_by_account_total", Help: "Sessions closed by account id."},
	{ID: marketauth.MetricPasswordResetRequest, Name: "marketauth_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: marketauth.MetricPasswordResetIssued, Name: "marketauth_password_reset_issued_total", Help: "Reset tokens issued."},
	{ID: marketauth.MetricPasswordResetNotifyFailure, Name: "marketauth_password_reset_notify_failure_total", Help: "Reset notices that could not be queued."},
	{ID: marketauth.MetricPasswordResetConfirmSuccess, Name: "marketauth_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: marketauth.MetricPasswordResetConfirmFailure, Name: "marketauth_password_reset_confirm_failure_total", Help: "Rejected password resets."},
	{ID: marketauth.MetricPasswordResetReuseRejected, Name: "marketauth_password_reset_reuse_rejected_total", Help: "Resets rejected for reusing the current password."},
	{ID: marketauth.MetricPasswordChangeSuccess, Name: "marketauth_password_change_success_total", Help: "Completed password changes."},
	{ID: marketauth.MetricPasswordChangeInvalidOld, Name: "marketauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: marketauth.MetricPasswordChangeReuseRejected, Name: "marketauth_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: marketauth.MetricAccountCreationSuccess, Name: "marketauth_account_creation_success_total", Help: "Registered accounts."},
	{ID: marketauth.MetricAccountCreationDuplicate, Name: "marketauth_account_creation_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: marketauth.MetricAccountVerified, Name: "marketauth_account_verified_total", Help: "Verification confirmations."},
	{ID: marketauth.MetricAccountDeactivated, Name: "marketauth_account_deactivated_total", Help: "Accounts deactivated."},
	{ID: marketauth.MetricAccountReactivated, Name: "marketauth_account_reactivated_total", Help: "Accounts reactivated."},
	{ID: marketauth.MetricAccountUnlocked, Name: "marketauth_account_unlocked_total", Help: "Manual unlocks."},
}

var HistogramDefs = []HistogramDef{
	{ID: marketauth.MetricLoginLatency, Name: "marketauth_login_latency_seconds", Help: "Login latency."},
}

const AuditDroppedName = "marketauth_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// HistogramUpperBounds are the finite bucket bounds in seconds; the last
// bucket of a snapshot is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
