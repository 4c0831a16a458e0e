// Package appconfig loads the authd service configuration. Values come from
// built-in defaults, then an optional YAML file, then command-line flags.
package appconfig

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/logging"
	"github.com/MrEthical07/marketauth/notify"
)

// Config is the on-disk shape of the service configuration. Durations are
// written as strings such as "24h" or "90s".
type Config struct {
	Listen            string        `yaml:"listen"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	TrustForwardedFor bool          `yaml:"trust_forwarded_for"`
	Metrics           bool          `yaml:"metrics"`

	Database Database            `yaml:"database"`
	Redis    Redis               `yaml:"redis"`
	Keys     Keys                `yaml:"keys"`
	Auth     Auth                `yaml:"auth"`
	Kinds    map[string]Kind     `yaml:"kinds"`
	SMTP     notify.SMTPConfig   `yaml:"smtp"`
	Mailer   notify.WorkerConfig `yaml:"mailer"`
	Log      logging.Config      `yaml:"log"`
}

type Database struct {
	Driver          string        `yaml:"driver"` // postgres or sqlite
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// Redis is optional. When Addr is set the login throttle and the redis
// notification queue are used.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	QueueKey string `yaml:"queue_key"`
}

type Keys struct {
	PrivateKeyFile   string `yaml:"private_key_file"`
	PublicKeyFile    string `yaml:"public_key_file"`
	LookupSecretFile string `yaml:"lookup_secret_file"`
}

type Auth struct {
	TokenTTL           time.Duration `yaml:"token_ttl"`
	LockoutMaxAttempts int           `yaml:"lockout_max_attempts"`
	LockoutWindow      time.Duration `yaml:"lockout_window"`
	ResetTokenTTL      time.Duration `yaml:"reset_token_ttl"`
	ThrottleAttempts   int           `yaml:"throttle_attempts"`
	ThrottleWindow     time.Duration `yaml:"throttle_window"`
	Audit              bool          `yaml:"audit"`
}

type Kind struct {
	RequireVerification *bool  `yaml:"require_verification"`
	ResetLinkBase       string `yaml:"reset_link_base"`
	EmailTemplate       string `yaml:"email_template"`
}

// Default returns the configuration used when no file or flag overrides a
// value.
func Default() Config {
	engine := marketauth.DefaultConfig()
	return Config{
		Listen:          ":8080",
		ShutdownTimeout: 15 * time.Second,
		Metrics:         true,
		Database: Database{
			Driver:          "postgres",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Redis: Redis{QueueKey: "ma:notify:reset"},
		Auth: Auth{
			TokenTTL:           engine.Token.TTL,
			LockoutMaxAttempts: engine.Lockout.MaxAttempts,
			LockoutWindow:      engine.Lockout.UnlockWindow,
			ResetTokenTTL:      engine.PasswordReset.TTL,
			ThrottleAttempts:   20,
			ThrottleWindow:     15 * time.Minute,
			Audit:              true,
		},
		SMTP:   notify.SMTPConfig{Port: 587},
		Mailer: notify.WorkerConfig{PerSecond: 5, Burst: 5, Timeout: 30 * time.Second},
		Log:    logging.Config{Level: "info", Console: true},
	}
}

// Load builds a Config from args. -config names the YAML file; every other
// flag overrides the matching file value only when it is given explicitly.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("authd", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))

	var (
		path     = fs.String("config", "", "path to YAML config file")
		listen   = fs.String("listen", "", "HTTP listen address")
		dsn      = fs.String("db-dsn", "", "database DSN")
		driver   = fs.String("db-driver", "", "database driver: postgres or sqlite")
		redis    = fs.String("redis-addr", "", "redis address; empty disables the throttle")
		logLevel = fs.String("log-level", "", "log level")
		migrate  = fs.Bool("migrate", true, "apply schema migrations on start")
	)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg := Default()
	if *path != "" {
		if err := cfg.mergeFile(*path); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "db-dsn":
			cfg.Database.DSN = *dsn
		case "db-driver":
			cfg.Database.Driver = *driver
		case "redis-addr":
			cfg.Redis.Addr = *redis
		case "log-level":
			cfg.Log.Level = *logLevel
		case "migrate":
			cfg.Database.Migrate = *migrate
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// Validate checks the service-level settings. Engine settings are checked
// again by the engine builder.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.Keys.PrivateKeyFile == "" || c.Keys.LookupSecretFile == "" {
		errs = append(errs, errors.New("keys.private_key_file and keys.lookup_secret_file are required"))
	}
	for name := range c.Kinds {
		if _, err := account.ParseKind(name); err != nil {
			errs = append(errs, fmt.Errorf("kinds: %w", err))
		}
	}
	return errors.Join(errs...)
}

// EngineConfig reads key material and maps the file values onto an engine
// configuration.
func (c *Config) EngineConfig() (marketauth.Config, error) {
	cfg := marketauth.DefaultConfig()

	priv, err := os.ReadFile(c.Keys.PrivateKeyFile)
	if err != nil {
		return cfg, fmt.Errorf("read private key: %w", err)
	}
	cfg.Token.PrivateKey = priv
	if c.Keys.PublicKeyFile != "" {
		pub, err := os.ReadFile(c.Keys.PublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read public key: %w", err)
		}
		cfg.Token.PublicKey = pub
	}
	secret, err := os.ReadFile(c.Keys.LookupSecretFile)
	if err != nil {
		return cfg, fmt.Errorf("read lookup secret: %w", err)
	}
	cfg.Lookup.Secret = bytes.TrimSpace(secret)

	cfg.Token.TTL = c.Auth.TokenTTL
	cfg.Lockout.MaxAttempts = c.Auth.LockoutMaxAttempts
	cfg.Lockout.UnlockWindow = c.Auth.LockoutWindow
	cfg.PasswordReset.TTL = c.Auth.ResetTokenTTL
	cfg.Audit.Enabled = c.Auth.Audit
	cfg.Metrics.Enabled = c.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Metrics

	if c.Redis.Addr != "" {
		cfg.Throttle.Enabled = true
		cfg.Throttle.MaxAttempts = c.Auth.ThrottleAttempts
		cfg.Throttle.Window = c.Auth.ThrottleWindow
	}

	for name, k := range c.Kinds {
		kind := account.Kind(strings.ToLower(name))
		kc := cfg.Kinds[kind]
		if k.RequireVerification != nil {
			kc.RequireVerification = *k.RequireVerification
		}
		if k.ResetLinkBase != "" {
			kc.ResetLinkBase = k.ResetLinkBase
		}
		if k.EmailTemplate != "" {
			kc.EmailTemplate = k.EmailTemplate
		}
		cfg.Kinds[kind] = kc
	}

	return cfg, cfg.Validate()
}
