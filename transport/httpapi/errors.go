package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/logging"
)

// Error codes returned in apiError.Code.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountUnverified  = "ACCOUNT_UNVERIFIED"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodePasswordReuse      = "PASSWORD_REUSE"
	CodePasswordPolicy     = "PASSWORD_POLICY"
	CodeAccountExists      = "ACCOUNT_EXISTS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

type apiError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	RetryAfterHours   int    `json:"retry_after_hours,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, apiErr apiError) {
	writeJSON(w, status, apiErr)
}

// mapError converts an engine error into a status and response body.
func mapError(err error) (int, apiError) {
	var (
		credErr   *marketauth.CredentialError
		lockedErr *marketauth.LockedError
	)
	switch {
	case errors.As(err, &lockedErr):
		return http.StatusLocked, apiError{
			Code:            CodeAccountLocked,
			Message:         lockedErr.Error(),
			RetryAfterHours: lockedErr.RemainingHours(),
		}
	case errors.As(err, &credErr):
		body := apiError{Code: CodeInvalidCredentials, Message: "invalid email or password"}
		if credErr.Remaining >= 0 {
			n := credErr.Remaining
			body.RemainingAttempts = &n
		}
		return http.StatusUnauthorized, body
	case errors.Is(err, marketauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, apiError{Code: CodeInvalidCredentials, Message: "invalid email or password"}
	case errors.Is(err, marketauth.ErrValidation):
		return http.StatusBadRequest, apiError{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, marketauth.ErrPasswordPolicy):
		return http.StatusUnprocessableEntity, apiError{Code: CodePasswordPolicy, Message: err.Error()}
	case errors.Is(err, marketauth.ErrPasswordReuse):
		return http.StatusUnprocessableEntity, apiError{Code: CodePasswordReuse, Message: marketauth.ErrPasswordReuse.Error()}
	case errors.Is(err, marketauth.ErrAccountUnverified):
		return http.StatusForbidden, apiError{Code: CodeAccountUnverified, Message: "account email is not verified"}
	case errors.Is(err, marketauth.ErrAccountInactive):
		return http.StatusForbidden, apiError{Code: CodeAccountInactive, Message: "account is inactive"}
	case errors.Is(err, marketauth.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, apiError{Code: CodeInvalidResetToken, Message: err.Error()}
	case errors.Is(err, marketauth.ErrAccountExists):
		return http.StatusConflict, apiError{Code: CodeAccountExists, Message: "an account with this email already exists"}
	case errors.Is(err, marketauth.ErrLoginRateLimited):
		return http.StatusTooManyRequests, apiError{Code: CodeRateLimited, Message: "too many login attempts"}
	case errors.Is(err, marketauth.ErrInvalidSessionToken):
		return http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "invalid session token"}
	case errors.Is(err, marketauth.ErrUnknownKind), errors.Is(err, marketauth.ErrAccountNotFound):
		return http.StatusNotFound, apiError{Code: CodeNotFound, Message: "not found"}
	case errors.Is(err, marketauth.ErrTransient), errors.Is(err, marketauth.ErrSessionCreationFailed):
		return http.StatusServiceUnavailable, apiError{Code: CodeUnavailable, Message: "service temporarily unavailable"}
	}
	return http.StatusInternalServerError, apiError{Code: CodeInternal, Message: "internal error"}
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(ctx, "request failed", "status", status, "err", err)
	}
	if status == http.StatusLocked {
		var lockedErr *marketauth.LockedError
		if errors.As(err, &lockedErr) && lockedErr.Remaining > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(lockedErr.Remaining.Seconds()))))
		}
	}
	writeAPIError(w, status, body)
}

func newLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.Nop()
	}
	return l.With("component", "httpapi")
}
