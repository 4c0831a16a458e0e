package marketauth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MrEthical07/marketauth/account"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventAccountLocked         = "account_locked"
	auditEventAccountAutoUnlocked   = "account_auto_unlocked"
	auditEventLogoutSession         = "logout_session"
	auditEventLogoutAll             = "logout_all"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventAccountCreation       = "account_creation"
	auditEventAccountStatusChange   = "account_status_change"
)

// AuditErrorCode is the stable, non-sensitive error label in AuditEvent.
type AuditErrorCode string

const (
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrSessionCreation    AuditErrorCode = "session_creation_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	kind account.Kind,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Kind:      kind,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccountNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrInvalidOrExpiredToken),
		errors.Is(err, ErrInvalidSessionToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrTransient):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
