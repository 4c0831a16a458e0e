package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/jwt"
	"github.com/MrEthical07/marketauth/logging"
)

type stubVerifier struct {
	claims *jwt.Claims
	err    error
}

func (s stubVerifier) VerifyToken(context.Context, string) (*jwt.Claims, error) {
	return s.claims, s.err
}

func vendorKind(*http.Request) account.Kind { return account.KindVendor }

func TestGuard(t *testing.T) {
	ok := &jwt.Claims{AccountID: "acc-1", SessionID: "s-1", Kind: "vendor"}

	tests := []struct {
		name     string
		verifier TokenVerifier
		header   string
		want     int
	}{
		{"valid", stubVerifier{claims: ok}, "Bearer tok", http.StatusOK},
		{"lowercase scheme", stubVerifier{claims: ok}, "bearer tok", http.StatusOK},
		{"missing header", stubVerifier{claims: ok}, "", http.StatusUnauthorized},
		{"empty token", stubVerifier{claims: ok}, "Bearer   ", http.StatusUnauthorized},
		{"basic scheme", stubVerifier{claims: ok}, "Basic dXNlcg==", http.StatusUnauthorized},
		{"verify error", stubVerifier{err: errors.New("expired")}, "Bearer tok", http.StatusUnauthorized},
		{"other kind", stubVerifier{claims: &jwt.Claims{AccountID: "a", Kind: "admin"}}, "Bearer tok", http.StatusUnauthorized},
		{"nil verifier", nil, "Bearer tok", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen *jwt.Claims
			h := Guard(tc.verifier, vendorKind)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK && (seen == nil || seen.AccountID != "acc-1") {
				t.Fatalf("claims not injected: %+v", seen)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(req, false); got != "198.51.100.7" {
		t.Fatalf("untrusted ClientIP = %q", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("trusted ClientIP = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	if got := ClientIP(req, true); got != "198.51.100.7" {
		t.Fatalf("garbage forwarded header must fall back, got %q", got)
	}

	req.RemoteAddr = "pipe"
	if got := ClientIP(req, false); got != "pipe" {
		t.Fatalf("RemoteAddr without port = %q", got)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(logging.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
