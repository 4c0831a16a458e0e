package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()
	_, priv := newEdKeys(t)
	iss, err := NewIssuer(Config{
		TTL:           time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "marketauth",
		Audience:      "backoffice",
	}, WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, &now)

	tok, exp, err := iss.IssueForKind("vendor", "acc-1", "sid-1")
	if err != nil {
		t.Fatalf("IssueForKind: %v", err)
	}
	if exp.Sub(now) > time.Hour || exp.Sub(now) < time.Hour-time.Second {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.SessionID != "sid-1" || claims.Kind != "vendor" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.IssuedAtTime().IsZero() {
		t.Fatalf("expected iat")
	}
}

func TestVerifyExpiredReturnsClaims(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, &now)
	tok, _, _ := iss.Issue("acc-1", "sid-1")

	now = now.Add(2 * time.Hour)
	claims, err := iss.Verify(tok)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if claims == nil || claims.SessionID != "sid-1" {
		t.Fatalf("expired token must still yield claims, got %+v", claims)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, &now)
	other := newTestIssuer(t, &now)

	tok, _, _ := other.Issue("acc-1", "sid-1")
	if _, err := iss.Verify(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	// an expired token signed by another key is still invalid, not expired
	now = now.Add(2 * time.Hour)
	if _, err := iss.Verify(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign expired token, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, &now)

	claims := Claims{AccountID: "a", SessionID: "s", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "marketauth",
		Audience:  gjwt.ClaimStrings{"backoffice"},
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(now),
	}}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.Verify(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestVerifyRejectsMissingBinding(t *testing.T) {
	now := time.Now()
	_, priv := newEdKeys(t)
	iss, _ := NewIssuer(Config{TTL: time.Hour, PrivateKey: priv}, WithClock(func() time.Time { return now }))

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(now),
	}}
	tok, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if _, err := iss.Verify(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestHS256(t *testing.T) {
	iss, err := NewIssuer(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	tok, _, _ := iss.Issue("acc", "sid")
	if _, err := iss.Verify(tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := iss.PublicKeyPEM(); err == nil {
		t.Fatalf("hs256 must not expose a public key")
	}
}

func TestNewIssuerValidation(t *testing.T) {
	pub, priv := newEdKeys(t)
	otherPub, _ := newEdKeys(t)
	cases := []Config{
		{TTL: 0, PrivateKey: priv},
		{TTL: time.Minute, Leeway: time.Hour, PrivateKey: priv},
		{TTL: time.Minute},
		{TTL: time.Minute, PrivateKey: priv, PublicKey: otherPub},
		{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: priv},
	}
	for i, c := range cases {
		if _, err := NewIssuer(c); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if _, err := NewIssuer(Config{TTL: time.Minute, PrivateKey: priv, PublicKey: pub}); err != nil {
		t.Fatalf("matching key pair rejected: %v", err)
	}
}

func TestGenerateEd25519PEMRoundTrip(t *testing.T) {
	privPEM, pubPEM, err := GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("GenerateEd25519PEM: %v", err)
	}
	iss, err := NewIssuer(Config{TTL: time.Minute, PrivateKey: privPEM, PublicKey: pubPEM})
	if err != nil {
		t.Fatalf("NewIssuer from PEM: %v", err)
	}
	got, err := iss.PublicKeyPEM()
	if err != nil || string(got) != string(pubPEM) {
		t.Fatalf("public key PEM mismatch: %v", err)
	}
}
