package marketauth

import (
	"context"
	"errors"
	"strings"
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

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config   Config
	store    store.Store
	redis    redis.UniversalClient
	logger   logging.Logger
	notifier notify.Enqueuer
	enricher enrich.Enricher
	audit    AuditSink
	now      func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence adapter. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis sets the client used by the login throttle. Required only when
// Throttle.Enabled is true.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithNotifier sets where password reset notices are enqueued. Without one,
// notices are discarded and a warning is logged at build time.
func (b *Builder) WithNotifier(n notify.Enqueuer) *Builder {
	b.notifier = n
	return b
}

// WithEnricher replaces the default user-agent and private-network
// enrichment. The enricher is always wrapped with timeout and panic
// protection.
func (b *Builder) WithEnricher(en enrich.Enricher) *Builder {
	b.enricher = en
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.audit = sink
	return b
}

// WithClock overrides time.Now for every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Throttle.Enabled && b.redis == nil {
		return nil, errors.New("Throttle requires redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	log := b.logger
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "marketauth")

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		log:      log,
		now:      now,
		validate: validation.New(),
		policy: lockout.Policy{
			MaxAttempts:  cfg.Lockout.MaxAttempts,
			UnlockWindow: cfg.Lockout.UnlockWindow,
		},
		resets:  resettoken.NewManager(cfg.PasswordReset.TTL, now),
		audit:   newAuditDispatcher(cfg.Audit, b.audit),
		metrics: NewMetrics(cfg.Metrics),
	}

	hasher, err := password.NewHasher(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	lookup, err := account.NewLookupHasher(cfg.Lookup.Secret)
	if err != nil {
		return nil, err
	}
	engine.lookup = lookup

	issuer, err := jwt.NewIssuer(jwt.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.Token.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
	}, jwt.WithClock(now))
	if err != nil {
		return nil, err
	}
	engine.issuer = issuer

	engine.ledger = ledger.New(b.store.Sessions(),
		ledger.WithLogger(log),
		ledger.WithClock(now),
		ledger.WithErrorHook(func() { engine.metricInc(MetricSessionLedgerWriteFailure) }),
	)

	en := b.enricher
	if en == nil {
		en = enrich.Chain{enrich.UserAgent{}, enrich.PrivateNetwork{}}
	}
	engine.enricher = enrich.NewSafe(en, cfg.Sessions.EnrichTimeout, log)

	engine.notifier = b.notifier
	if engine.notifier == nil {
		log.Warn(context.Background(), "no notifier configured; password reset notices will be discarded")
		engine.notifier = notify.Discard{}
	}

	engine.redis = b.redis
	if cfg.Throttle.Enabled {
		engine.throttle = rate.New(b.redis, rate.Config{
			EnableOriginThrottle: cfg.Throttle.EnableOriginThrottle,
			MaxAttempts:          cfg.Throttle.MaxAttempts,
			Window:               cfg.Throttle.Window,
		})
	}

	b.built = true

	return engine, nil
}
