package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/jwt"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/logging"
	"github.com/MrEthical07/marketauth/middleware"
)

const maxBodyBytes = 64 << 10

// Service is the engine surface the handlers need. *marketauth.Engine
// satisfies it.
type Service interface {
	Register(ctx context.Context, kind account.Kind, req marketauth.RegisterRequest) (*account.Summary, error)
	Login(ctx context.Context, kind account.Kind, req marketauth.LoginRequest) (*marketauth.LoginResult, error)
	Logout(ctx context.Context, kind account.Kind, token string) (bool, error)
	LogoutByAccount(ctx context.Context, kind account.Kind, accountID string) (bool, error)
	ForgotPassword(ctx context.Context, kind account.Kind, email string) (*marketauth.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, kind account.Kind, req marketauth.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, kind account.Kind, req marketauth.ChangePasswordRequest) error
	Account(ctx context.Context, kind account.Kind, accountID string) (*account.Summary, error)
	SessionHistory(ctx context.Context, kind account.Kind, accountID string, limit int) ([]ledger.Record, error)
	VerifyToken(ctx context.Context, token string) (*jwt.Claims, error)
	Health(ctx context.Context) marketauth.HealthStatus
	RedisConfigured() bool
}

// Handler serves the account routes for every kind.
type Handler struct {
	service Service
	log     logging.Logger
}

// NewHandler creates a Handler. A nil logger discards output.
func NewHandler(service Service, log logging.Logger) *Handler {
	return &Handler{
		service: service,
		log:     newLogger(log),
	}
}

func kindParam(r *http.Request) account.Kind {
	return account.Kind(chi.URLParam(r, "kind"))
}

// requireKind answers 404 for path kinds the engine does not know.
func requireKind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !kindParam(r).Valid() {
			writeAPIError(w, http.StatusNotFound, apiError{Code: CodeNotFound, Message: "unknown account kind"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, apiError{Code: CodeValidation, Message: "malformed JSON body"})
		return false
	}
	return true
}

// Register creates an account.
// POST /v1/{kind}/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req marketauth.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	summary, err := h.service.Register(r.Context(), kindParam(r), req)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// Login authenticates and returns a session token.
// POST /v1/{kind}/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req marketauth.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), kindParam(r), req)
	if errors.Is(err, marketauth.ErrAccountNotFound) {
		err = marketauth.ErrInvalidCredentials
	}
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Logout closes the session named by the bearer token.
// POST /v1/{kind}/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "missing bearer token"})
		return
	}

	closed, err := h.service.Logout(r.Context(), kindParam(r), token)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": closed})
}

// LogoutAll closes the newest open session of the caller from its origin.
// POST /v1/{kind}/logout/all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "authentication required"})
		return
	}

	closed, err := h.service.LogoutByAccount(r.Context(), kindParam(r), claims.AccountID)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": closed})
}

type forgotPasswordBody struct {
	Email string `json:"email"`
}

// ForgotPassword always answers with the same body for any well-formed
// email.
// POST /v1/{kind}/password/forgot
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := h.service.ForgotPassword(r.Context(), kindParam(r), body.Email)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ResetPassword consumes a reset token.
// POST /v1/{kind}/password/reset
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req marketauth.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), kindParam(r), req)
	if errors.Is(err, marketauth.ErrAccountNotFound) {
		err = marketauth.ErrInvalidOrExpiredToken
	}
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword replaces the caller's password.
// POST /v1/{kind}/password/change
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "authentication required"})
		return
	}

	var req marketauth.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.AccountID = claims.AccountID

	if err := h.service.ChangePassword(r.Context(), kindParam(r), req); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's account summary.
// GET /v1/{kind}/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "authentication required"})
		return
	}

	summary, err := h.service.Account(r.Context(), kindParam(r), claims.AccountID)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type sessionView struct {
	SessionID     string     `json:"session_id"`
	Outcome       string     `json:"outcome"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Origin        string     `json:"origin"`
	Browser       string     `json:"browser"`
	OS            string     `json:"os"`
	Device        string     `json:"device"`
	Location      string     `json:"location"`
	LoginAt       time.Time  `json:"login_at"`
	LogoutAt      *time.Time `json:"logout_at,omitempty"`
	Current       bool       `json:"current"`
}

func newSessionView(rec ledger.Record, currentSession string) sessionView {
	return sessionView{
		SessionID:     rec.SessionID,
		Outcome:       string(rec.Outcome),
		FailureReason: string(rec.FailureReason),
		Origin:        rec.Metadata.Origin,
		Browser:       rec.Metadata.Browser,
		OS:            rec.Metadata.OS,
		Device:        rec.Metadata.Device,
		Location:      rec.Metadata.Location,
		LoginAt:       rec.LoginAt,
		LogoutAt:      rec.LogoutAt,
		Current:       rec.SessionID == currentSession && rec.Open(),
	}
}

// Sessions lists the caller's login history, newest first.
// GET /v1/{kind}/sessions?limit=N
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "authentication required"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIError(w, http.StatusBadRequest, apiError{Code: CodeValidation, Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	recs, err := h.service.SessionHistory(r.Context(), kindParam(r), claims.AccountID, limit)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]sessionView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newSessionView(rec, claims.SessionID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

type healthBody struct {
	Status         string `json:"status"`
	StoreAvailable bool   `json:"store_available"`
	StoreLatencyMS int64  `json:"store_latency_ms"`
	RedisAvailable *bool  `json:"redis_available,omitempty"`
}

// Health reports backend availability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	hs := h.service.Health(r.Context())
	redisConfigured := h.service.RedisConfigured()

	body := healthBody{
		Status:         "ok",
		StoreAvailable: hs.StoreAvailable,
		StoreLatencyMS: hs.StoreLatency.Milliseconds(),
	}
	if redisConfigured {
		body.RedisAvailable = &hs.RedisAvailable
	}

	status := http.StatusOK
	if !hs.Healthy(redisConfigured) {
		status = http.StatusServiceUnavailable
		body.Status = "degraded"
	}
	writeJSON(w, status, body)
}
