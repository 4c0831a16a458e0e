package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/jwt"
)

// TokenVerifier is the subset of marketauth.Engine used by Guard.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// KindResolver extracts the account kind a request targets.
type KindResolver func(r *http.Request) account.Kind

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return c, ok
}

// WithClaims stores claims on ctx the way Guard does.
func WithClaims(ctx context.Context, c *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Guard rejects requests without a valid bearer token issued for the kind
// returned by resolve.
func Guard(verifier TokenVerifier, resolve KindResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyToken(r.Context(), token)
			if err != nil || claims.AccountID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if resolve != nil && claims.Kind != string(resolve(r)) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
