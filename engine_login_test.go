package marketauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/ledger"
)

func TestLoginSuccessReturnsTokenBoundToSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, account.KindVendor, "Seller@Example.com", testPassword)

	res, err := env.login(account.KindVendor, "SELLER@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := env.engine.VerifyToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.SessionID != res.SessionID || claims.AccountID != id || claims.Kind != "vendor" {
		t.Fatalf("claims do not match result: %+v vs %+v", claims, res)
	}
	if !res.ExpiresAt.Equal(env.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}
	if res.Account.ID != id || res.Account.Status != "ACTIVE" || res.Account.Email != "seller@example.com" {
		t.Fatalf("unexpected summary %+v", res.Account)
	}

	rec, err := env.engine.ledger.Get(context.Background(), account.KindVendor, res.SessionID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if rec.Outcome != ledger.OutcomeSuccess || !rec.Open() {
		t.Fatalf("expected open success record, got %+v", rec)
	}

	a := env.account(t, account.KindVendor, id)
	if a.SuccessfulAttempts != 1 || a.FailedAttempts != 0 || a.LastLoginAt == nil {
		t.Fatalf("counters not updated: %+v", a)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected 1 login success, got %d", got)
	}
}

func TestLoginUnknownEmailRecordsTrackingFailure(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.login(account.KindUser, "ghost@example.com", testPassword)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	subject := ledger.TrackingID(env.engine.lookup.Hash("ghost@example.com"))
	recs, err := env.engine.SessionHistory(context.Background(), account.KindUser, subject, 0)
	if err != nil {
		t.Fatalf("SessionHistory: %v", err)
	}
	if len(recs) != 1 || recs[0].FailureReason != ledger.ReasonNotFound {
		t.Fatalf("expected one not-found record, got %+v", recs)
	}
}

func TestLoginUnverifiedIsNotCounted(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.engine.Register(context.Background(), account.KindUser, RegisterRequest{Email: "new@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 7; i++ {
		_, err := env.login(account.KindUser, "new@example.com", wrongPassword)
		var ce *CredentialError
		if !errors.As(err, &ce) || ce.Remaining != -1 {
			t.Fatalf("attempt %d: expected uncounted credential error, got %v", i+1, err)
		}
	}
	if a := env.account(t, account.KindUser, s.ID); a.FailedAttempts != 0 || a.Status != account.StatusUnverified {
		t.Fatalf("unverified account changed: %+v", a)
	}

	_, err = env.login(account.KindUser, "new@example.com", testPassword)
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestLoginInactiveCheckedAfterPassword(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, account.KindAdmin, "root@example.com", testPassword)
	if err := env.engine.Deactivate(context.Background(), account.KindAdmin, id); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	_, err := env.login(account.KindAdmin, "root@example.com", wrongPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = env.login(account.KindAdmin, "root@example.com", testPassword)
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}

	if err := env.engine.Reactivate(context.Background(), account.KindAdmin, id); err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if _, err := env.login(account.KindAdmin, "root@example.com", testPassword); err != nil {
		t.Fatalf("login after reactivate: %v", err)
	}
}

func TestLoginKindsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, account.KindUser, "shared@example.com", testPassword)
	env.register(t, account.KindVendor, "shared@example.com", "vendor-secret-99")

	if _, err := env.login(account.KindVendor, "shared@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("vendor must not accept the user password, got %v", err)
	}
	if _, err := env.login(account.KindAdmin, "shared@example.com", testPassword); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for admin kind, got %v", err)
	}
	if _, err := env.login(account.KindUser, "shared@example.com", testPassword); err != nil {
		t.Fatalf("user login: %v", err)
	}
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.login(account.KindUser, "not-an-email", testPassword); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := env.login(account.Kind("courier"), "a@example.com", testPassword); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestLoginLedgerFailureIssuesNoToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, account.KindUser, "u@example.com", testPassword)
	env.store.FailSessionWrites = errors.New("disk full")

	res, err := env.login(account.KindUser, "u@example.com", testPassword)
	if !errors.Is(err, ErrSessionCreationFailed) || res != nil {
		t.Fatalf("expected ErrSessionCreationFailed and no result, got %v %+v", err, res)
	}
}

func TestLoginFailureStillReportedWhenLedgerDown(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, account.KindUser, "u@example.com", testPassword)
	env.store.FailSessionWrites = errors.New("disk full")

	_, err := env.login(account.KindUser, "u@example.com", wrongPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSessionLedgerWriteFailure]; got != 1 {
		t.Fatalf("expected ledger failure metric 1, got %d", got)
	}
}

func TestLoginRecordsEnrichedMetadata(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, account.KindUser, "u@example.com", testPassword)

	ctx := WithClientIP(context.Background(), "10.0.0.5")
	ctx = WithUserAgent(ctx, "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	if _, err := env.engine.Login(ctx, account.KindUser, LoginRequest{Email: "u@example.com", Password: testPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	recs, err := env.engine.SessionHistory(ctx, account.KindUser, id, 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("SessionHistory: %v %+v", err, recs)
	}
	m := recs[0].Metadata
	if m.Origin != "10.0.0.5" || m.Browser != "Firefox" || m.OS != "Linux" || m.Location != "private network" {
		t.Fatalf("unexpected metadata %+v", m)
	}
}

func TestLoginThrottleBlocksBeforeCredentialCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Throttle.Enabled = true
		cfg.Throttle.MaxAttempts = 2
		cfg.Throttle.Window = time.Minute
		b.WithRedis(rdb)
	})
	env.register(t, account.KindUser, "u@example.com", testPassword)

	for i := 0; i < 2; i++ {
		if _, err := env.login(account.KindUser, "u@example.com", wrongPassword); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := env.login(account.KindUser, "u@example.com", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := env.login(account.KindUser, "u@example.com", testPassword); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestBuildRequiresRedisForThrottle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Throttle.Enabled = true
	_, err := New().WithConfig(cfg).WithStore(newTestEnv(t).store).Build()
	if err == nil {
		t.Fatal("expected error without redis client")
	}
}
