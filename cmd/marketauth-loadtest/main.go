// Command marketauth-loadtest measures login latency against an in-memory
// store. With -redis-addr (or REDIS_ADDR) the redis throttle runs in front
// of the credential check; -miniredis uses an embedded server instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/jwt"
	"github.com/MrEthical07/marketauth/store/memory"
)

const loadPassword = "load-test-password-1"

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "login attempts per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env is used")
		embedded    = flag.Bool("miniredis", false, "start an embedded redis when no address is given")
		kindName    = flag.String("kind", "user", "account kind to exercise")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	kind, err := account.ParseKind(*kindName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var client redis.UniversalClient
	switch {
	case addr != "":
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
	case *embedded:
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	default:
		fmt.Println("throttle disabled")
	}
	if client != nil {
		defer func() { _ = client.Close() }()
	}

	engine, err := buildEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	emails := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("load-%d@example.com", i)
		s, err := engine.Register(ctx, kind, marketauth.RegisterRequest{Email: emails[i], Password: loadPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		if err := engine.ConfirmVerification(ctx, kind, s.ID); err != nil {
			fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	success := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		email := emails[r.Intn(len(emails))]
		_, err := engine.Login(ctx, kind, marketauth.LoginRequest{Email: email, Password: loadPassword, Origin: "198.51.100.1"})
		return err
	})
	var locked atomic.Int64
	failure := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		email := emails[r.Intn(len(emails))]
		_, err := engine.Login(ctx, kind, marketauth.LoginRequest{Email: email, Password: "wrong-" + loadPassword, Origin: "198.51.100.2"})
		if errors.Is(err, marketauth.ErrAccountLocked) {
			locked.Add(1)
		}
		if errors.Is(err, marketauth.ErrInvalidCredentials) || errors.Is(err, marketauth.ErrAccountLocked) {
			return nil
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("login-success", success)
	printStats("login-failure", failure)
	fmt.Printf("locked responses: %d\n", locked.Load())
	snap := engine.MetricsSnapshot()
	fmt.Printf("lockouts: %d  throttled: %d\n", snap.Counters[marketauth.MetricAccountLocked], snap.Counters[marketauth.MetricLoginRateLimited])
}

func buildEngine(client redis.UniversalClient) (*marketauth.Engine, error) {
	priv, pub, err := jwt.GenerateEd25519PEM()
	if err != nil {
		return nil, err
	}
	cfg := marketauth.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Lookup.Secret = []byte(strings.Repeat("l", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if client != nil {
		cfg.Throttle.Enabled = true
		cfg.Throttle.MaxAttempts = 1 << 20
	}

	b := marketauth.New().WithConfig(cfg).WithStore(memory.New())
	if client != nil {
		b = b.WithRedis(client)
	}
	return b.Build()
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d errors=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
