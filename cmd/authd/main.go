// Command authd serves the marketauth engine over HTTP.
//
//	authd -config /etc/marketauth/authd.yaml
//
// Startup order: config, logger, database (with migrations), redis, engine,
// notification worker, HTTP server. SIGINT or SIGTERM drains the server and
// stops the worker.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/internal/appconfig"
	"github.com/MrEthical07/marketauth/internal/sqlstore"
	"github.com/MrEthical07/marketauth/logging"
	promexport "github.com/MrEthical07/marketauth/metrics/export/prometheus"
	"github.com/MrEthical07/marketauth/notify"
	"github.com/MrEthical07/marketauth/store/postgres"
	"github.com/MrEthical07/marketauth/store/sqlite"
	"github.com/MrEthical07/marketauth/transport/httpapi"
)

func main() {
	cfg, err := appconfig.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authd: logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(context.Background(), "authd stopped", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, log *logging.ZapLogger) error {
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	notifier, worker, err := notificationPipeline(cfg, rdb, log)
	if err != nil {
		return err
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	b := marketauth.New().
		WithConfig(engineCfg).
		WithStore(st).
		WithLogger(log).
		WithNotifier(notifier).
		WithAuditSink(marketauth.NewLoggerSink(log))
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	log.Info(ctx, "engine ready",
		"signing", report.SigningAlgorithm,
		"password_algorithm", report.PasswordAlgorithm,
		"lockout_max_attempts", report.LockoutMaxAttempts,
		"lockout_window", report.LockoutWindow.String(),
		"reset_token_ttl", report.ResetTokenTTL.String(),
		"throttle", report.ThrottleActive,
		"audit", report.AuditActive,
		"notifications", report.NotificationsActive,
	)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if worker != nil {
			_ = worker.Run(ctx)
		}
	}()

	deps := &httpapi.RouterDeps{
		Service:           engine,
		Logger:            log,
		TrustForwardedFor: cfg.TrustForwardedFor,
	}
	if cfg.Metrics {
		deps.Metrics = promexport.Handler(promexport.NewCollector(engine))
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Warn(context.Background(), "shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if q, ok := notifier.(*notify.ChannelQueue); ok {
		q.Close()
	}
	<-workerDone
	log.Info(context.Background(), "shutdown complete")
	return nil
}

func openStore(ctx context.Context, dbCfg appconfig.Database) (*sqlstore.Store, error) {
	var (
		db      *sql.DB
		err     error
		migrate func(context.Context, *sql.DB) error
		wrap    func(*sql.DB) *sqlstore.Store
	)
	switch dbCfg.Driver {
	case "sqlite":
		db, err = sqlite.Open(ctx, dbCfg.DSN)
		migrate, wrap = sqlite.RunMigrations, sqlite.New
	default:
		db, err = postgres.Open(ctx, dbCfg.DSN, postgres.PoolConfig{
			MaxOpenConns:    dbCfg.MaxOpenConns,
			MaxIdleConns:    dbCfg.MaxIdleConns,
			ConnMaxLifetime: dbCfg.ConnMaxLifetime,
		})
		migrate, wrap = postgres.RunMigrations, postgres.New
	}
	if err != nil {
		return nil, err
	}
	if dbCfg.Migrate {
		if err := migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return wrap(db), nil
}

// notificationPipeline picks the queue the engine writes reset notices to
// and the worker that delivers them. Without SMTP settings notices are
// dropped.
func notificationPipeline(cfg *appconfig.Config, rdb redis.UniversalClient, log logging.Logger) (notify.Enqueuer, *notify.Worker, error) {
	if cfg.SMTP.Host == "" {
		log.Warn(context.Background(), "smtp not configured; password reset mail is disabled")
		return notify.Discard{}, nil, nil
	}
	mailer, err := notify.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		return nil, nil, err
	}

	if rdb != nil {
		q := notify.NewRedisQueue(rdb, cfg.Redis.QueueKey)
		return q, notify.NewWorker(q, mailer, cfg.Mailer, log), nil
	}
	q := notify.NewChannelQueue(1024)
	return q, notify.NewWorker(q, mailer, cfg.Mailer, log), nil
}
