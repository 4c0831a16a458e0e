package marketauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/enrich"
	"github.com/MrEthical07/marketauth/internal/lockout"
	"github.com/MrEthical07/marketauth/internal/rate"
	"github.com/MrEthical07/marketauth/internal/validation"
	"github.com/MrEthical07/marketauth/jwt"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/logging"
	"github.com/MrEthical07/marketauth/notify"
	"github.com/MrEthical07/marketauth/password"
	"github.com/MrEthical07/marketauth/resettoken"
	"github.com/MrEthical07/marketauth/store"
)

// Engine orchestrates login, password reset and logout for every account
// kind. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	config   Config
	store    store.Store
	hasher   password.Hasher
	lookup   *account.LookupHasher
	policy   lockout.Policy
	ledger   *ledger.Ledger
	resets   *resettoken.Manager
	issuer   *jwt.Issuer
	notifier notify.Enqueuer
	enricher enrich.Enricher
	throttle *rate.Limiter
	redis    redis.UniversalClient
	validate *validation.Validator
	audit    *auditDispatcher
	metrics  *Metrics
	log      logging.Logger
	now      func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// VerifyToken checks a session token without consulting the ledger.
func (e *Engine) VerifyToken(_ context.Context, token string) (*jwt.Claims, error) {
	claims, err := e.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// PublicKeyPEM exposes the token verification key for other services.
func (e *Engine) PublicKeyPEM() ([]byte, error) {
	return e.issuer.PublicKeyPEM()
}

// SessionHistory lists the newest login records of an account.
func (e *Engine) SessionHistory(ctx context.Context, kind account.Kind, accountID string, limit int) ([]ledger.Record, error) {
	if _, err := e.kindConfig(kind); err != nil {
		return nil, err
	}
	recs, err := e.ledger.History(ctx, kind, accountID, limit)
	if err != nil {
		return nil, transient("session history", err)
	}
	return recs, nil
}

func (e *Engine) kindConfig(kind account.Kind) (KindConfig, error) {
	kc, ok := e.config.Kinds[kind]
	if !ok || !kind.Valid() {
		return KindConfig{}, ErrUnknownKind
	}
	return kc, nil
}

// metadata resolves origin and client identity from explicit values or the
// context, then enriches them. Enrichment never fails.
func (e *Engine) metadata(ctx context.Context, origin, clientIdentity string) ledger.Metadata {
	if origin == "" {
		origin = clientIPFromContext(ctx)
	}
	if clientIdentity == "" {
		clientIdentity = userAgentFromContext(ctx)
	}
	r := e.enricher.Enrich(ctx, clientIdentity, origin)
	return ledger.Metadata{
		Origin:         origin,
		ClientIdentity: clientIdentity,
		Browser:        r.Browser,
		OS:             r.OS,
		Device:         r.Device,
		Location:       r.Location,
	}
}

func (e *Engine) validateRequest(req any) error {
	if err := e.validate.Struct(req); err != nil {
		if errors.Is(err, validation.ErrInvalid) {
			return errors.Join(ErrValidation, err)
		}
		return err
	}
	return nil
}

// hashPassword maps the hasher's policy errors onto ErrPasswordPolicy.
func (e *Engine) hashPassword(plain string) (string, error) {
	h, err := e.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return "", errors.Join(ErrPasswordPolicy, err)
		}
		return "", err
	}
	return h, nil
}

func resetLink(base, token, email string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("email", account.NormalizeEmail(email))
	u.RawQuery = q.Encode()
	return u.String()
}
