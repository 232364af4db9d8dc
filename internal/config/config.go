// Package config loads service configuration from an optional YAML file
// overlaid with DISPATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Lockout    LockoutConfig    `yaml:"lockout"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"DISPATCH_HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"DISPATCH_HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"DISPATCH_HTTP_WRITE_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"DISPATCH_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"DISPATCH_HTTP_RATE_LIMIT_RPS" env-default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"DISPATCH_HTTP_RATE_LIMIT_BURST" env-default:"100"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"DISPATCH_HTTP_ALLOWED_ORIGINS" env-separator:"," env-description:"browser origins allowed by CORS"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr" env:"DISPATCH_GRPC_ADDR" env-default:":9090"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DISPATCH_DB_DRIVER" env-default:"postgres"`
	DSN    string `yaml:"dsn" env:"DISPATCH_DB_DSN"`
	// MigrateOnStart applies pending migrations before serving.
	MigrateOnStart bool `yaml:"migrate_on_start" env:"DISPATCH_DB_MIGRATE_ON_START" env-default:"false"`
}

type AuthConfig struct {
	Secret string `yaml:"secret" env:"DISPATCH_AUTH_SECRET"`
	Issuer string `yaml:"issuer" env:"DISPATCH_AUTH_ISSUER" env-default:"dispatchdesk"`
}

type LockoutConfig struct {
	Threshold int           `yaml:"threshold" env:"DISPATCH_LOCKOUT_THRESHOLD" env-default:"5"`
	Duration  time.Duration `yaml:"duration" env:"DISPATCH_LOCKOUT_DURATION" env-default:"1h"`
}

type ReconcilerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"DISPATCH_RECONCILER_ENABLED" env-default:"true"`
	Schedule string `yaml:"schedule" env:"DISPATCH_RECONCILER_SCHEDULE" env-default:"@every 1m"`
	Batch    int    `yaml:"batch" env:"DISPATCH_RECONCILER_BATCH" env-default:"100"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"DISPATCH_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"DISPATCH_LOG_FORMAT" env-default:"json"`
}

// Load reads path when it is non-empty, then applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if strings.TrimSpace(path) != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements the tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if c.Lockout.Threshold <= 0 {
		errs = append(errs, errors.New("lockout.threshold must be positive"))
	}
	if c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout.duration must be positive"))
	}
	if c.Reconciler.Batch <= 0 {
		errs = append(errs, errors.New("reconciler.batch must be positive"))
	}
	if c.Reconciler.Enabled {
		if _, err := cron.ParseStandard(c.Reconciler.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("reconciler.schedule: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Usage describes every supported environment variable.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
