package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrExpired is returned by Verify for an authentic token past its
	// expiry. The claims are returned alongside it.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers every other verification failure.
	ErrInvalid = errors.New("token invalid")
)

// Config parameterizes the Issuer. Keys are raw bytes or PEM.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// Claims binds a token to one account and one ledger session.
type Claims struct {
	AccountID string `json:"aid"`
	SessionID string `json:"sid"`
	Kind      string `json:"knd,omitempty"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the iat claim or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Issuer signs and verifies access tokens. It is built once at startup and
// is read-only afterwards.
type Issuer struct {
	config  Config
	signKey any
	verKey  any
	now     func() time.Time
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	i := &Issuer{config: cfg, now: time.Now}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
		i.signKey, i.verKey = cfg.PrivateKey, cfg.PrivateKey
	case MethodEd25519, "":
		i.config.SigningMethod = MethodEd25519
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		i.signKey = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			if !pub.Equal(priv.Public()) {
				return nil, errors.New("ed25519 public key does not match private key")
			}
		}
		i.verKey = priv.Public()
	default:
		return nil, errors.New("unsupported signing method")
	}

	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) TTL() time.Duration { return i.config.TTL }

// Issue signs a token for accountID bound to sessionID.
func (i *Issuer) Issue(accountID, sessionID string) (string, time.Time, error) {
	return i.IssueForKind("", accountID, sessionID)
}

// IssueForKind is Issue with the account kind recorded in the token.
func (i *Issuer) IssueForKind(kind, accountID, sessionID string) (string, time.Time, error) {
	if accountID == "" || sessionID == "" {
		return "", time.Time{}, errors.New("account id and session id are required")
	}
	now := i.now()
	exp := now.Add(i.config.TTL)

	claims := Claims{
		AccountID: accountID,
		SessionID: sessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	token := jwt.NewWithClaims(i.method(), claims)
	if i.config.KeyID != "" {
		token.Header["kid"] = i.config.KeyID
	}
	signed, err := token.SignedString(i.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp.Truncate(time.Second), nil
}

// Verify checks signature, issuer, audience and expiry. For an authentic but
// expired token it returns the claims together with ErrExpired.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method().Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if i.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != i.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return i.verKey, nil
	})
	switch {
	case err == nil && token.Valid:
	case errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if claims.AccountID == "" || claims.SessionID == "" {
			return nil, ErrInvalid
		}
		return claims, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.AccountID == "" || claims.SessionID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// PublicKeyPEM returns the PKIX PEM of the Ed25519 verification key. It
// fails for HS256, whose key must not be distributed.
func (i *Issuer) PublicKeyPEM() ([]byte, error) {
	pub, ok := i.verKey.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("no public key for symmetric signing method")
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func (i *Issuer) method() jwt.SigningMethod {
	if i.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

// GenerateEd25519PEM creates a fresh key pair as PKCS#8 / PKIX PEM blocks.
func GenerateEd25519PEM() (privPEM, pubPEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == 0 {
		return nil, errors.New("ed25519 requires private key")
	}
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
