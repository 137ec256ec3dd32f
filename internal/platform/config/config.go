package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App         App         `yaml:"app"`
	HTTP        HTTP        `yaml:"http"`
	Log         Log         `yaml:"log"`
	Storage     Storage     `yaml:"storage"`
	Postgres    Postgres    `yaml:"postgres"`
	Redis       Redis       `yaml:"redis"`
	Auth        Auth        `yaml:"auth"`
	JWT         JWTConfig   `yaml:"jwt"`
	Idempotency Idempotency `yaml:"idempotency"`
	Admin       Admin       `yaml:"admin"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"transit-expense-api"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"dev"`
}

type HTTP struct {
	Port              string        `yaml:"port" env:"PORT" env-default:"8080"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"15s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Storage struct {
	// Backend selects the repository implementation: memory | postgres.
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
	// Idempotency selects the replay store: memory | postgres | redis.
	// Empty follows Backend.
	Idempotency string `yaml:"idempotency" env:"IDEMPOTENCY_BACKEND"`
}

type Postgres struct {
	URL            string        `yaml:"url" env:"DATABASE_URL"`
	MaxConns       int32         `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"10"`
	MinConns       int32         `yaml:"min_conns" env:"POSTGRES_MIN_CONNS" env-default:"0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"POSTGRES_CONNECT_TIMEOUT" env-default:"5s"`
	// AutoMigrate applies embedded migrations at startup.
	AutoMigrate bool `yaml:"auto_migrate" env:"POSTGRES_AUTO_MIGRATE" env-default:"false"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

const (
	AuthModeJWT = "jwt"
	AuthModeDev = "dev"
)

type Auth struct {
	// Mode is jwt (IdP sign-in + session cookie) or dev (X-Debug-Email header).
	Mode string `yaml:"mode" env:"AUTH_MODE" env-default:"jwt"`
	// CompanyDomain restricts sign-in to emails ending in "@" + CompanyDomain.
	CompanyDomain string `yaml:"company_domain" env:"COMPANY_DOMAIN"`
	DevEmail      string `yaml:"dev_email" env:"DEV_EMAIL"`

	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"720h"`
	CookieName    string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"transit_session"`
	CookieSecure  bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"true"`
}

type Idempotency struct {
	TTL time.Duration `yaml:"ttl" env:"IDEMPOTENCY_TTL" env-default:"24h"`
}

type Admin struct {
	Emails []string `yaml:"emails" env:"ADMIN_EMAILS" env-separator:","`
}

// Load reads path (when present) and then the environment, which wins.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IdempotencyBackend resolves the replay store, defaulting to the storage backend.
func (c *Config) IdempotencyBackend() string {
	if c.Storage.Idempotency != "" {
		return c.Storage.Idempotency
	}
	return c.Storage.Backend
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", c.Storage.Backend))
	}

	switch c.IdempotencyBackend() {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when IDEMPOTENCY_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_BACKEND must be memory, postgres or redis, got %q", c.IdempotencyBackend()))
	}

	switch c.Auth.Mode {
	case AuthModeDev:
	case AuthModeJWT:
		if err := c.JWT.Validate(); err != nil {
			errs = append(errs, err)
		}
		if strings.TrimSpace(c.Auth.CompanyDomain) == "" {
			errs = append(errs, errors.New("COMPANY_DOMAIN is required when AUTH_MODE=jwt"))
		}
		if len(c.Auth.SessionSecret) < 32 {
			errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be jwt or dev, got %q", c.Auth.Mode))
	}

	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	return errors.Join(errs...)
}
