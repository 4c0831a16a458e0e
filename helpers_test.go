package marketauth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/jwt"
	"github.com/MrEthical07/marketauth/notify"
	"github.com/MrEthical07/marketauth/store"
	"github.com/MrEthical07/marketauth/store/memory"
)

const (
	testPassword  = "correct-horse-42"
	wrongPassword = "wrong-password-1"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	queue  *notify.ChannelQueue
	clock  *fakeClock
}

func testConfig(t *testing.T) Config {
	t.Helper()
	priv, pub, err := jwt.GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("GenerateEd25519PEM: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Token.TTL = time.Hour
	cfg.Lookup.Secret = []byte(strings.Repeat("k", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config, *Builder)) *testEnv {
	t.Helper()
	env := &testEnv{
		store: memory.New(),
		queue: notify.NewChannelQueue(16),
		clock: newFakeClock(),
	}
	cfg := testConfig(t)
	b := New()
	for _, m := range mutate {
		m(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).
		WithStore(env.store).
		WithNotifier(env.queue).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// register creates an account and confirms it so it can log in.
func (env *testEnv) register(t *testing.T, kind account.Kind, email, pw string) string {
	t.Helper()
	ctx := context.Background()
	s, err := env.engine.Register(ctx, kind, RegisterRequest{Email: email, Password: pw, DisplayName: "Test " + string(kind)})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	if err := env.engine.ConfirmVerification(ctx, kind, s.ID); err != nil {
		t.Fatalf("ConfirmVerification: %v", err)
	}
	return s.ID
}

func (env *testEnv) account(t *testing.T, kind account.Kind, id string) *account.Account {
	t.Helper()
	var out *account.Account
	err := env.store.WithTx(context.Background(), func(tx store.Tx) error {
		a, err := tx.AccountByID(context.Background(), kind, id)
		out = a
		return err
	})
	if err != nil {
		t.Fatalf("AccountByID: %v", err)
	}
	return out
}

func (env *testEnv) login(kind account.Kind, email, pw string) (*LoginResult, error) {
	return env.engine.Login(context.Background(), kind, LoginRequest{Email: email, Password: pw})
}

// resetToken pops the next queued notice and extracts the token from its link.
func (env *testEnv) resetToken(t *testing.T) (string, notify.PasswordResetNotice) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := env.queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("no reset notice queued: %v", err)
	}
	u, err := url.Parse(n.Link)
	if err != nil {
		t.Fatalf("bad reset link %q: %v", n.Link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("reset link without token: %q", n.Link)
	}
	return token, n
}
