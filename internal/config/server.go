package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

const minSecretLen = 32

// ServerConfig is the auth server configuration
type ServerConfig struct {
	HTTP    HTTPConfig
	Storage StorageConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`
	Auth    AuthConfig

	// LogLevel is one of debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// IsDev разрешает пустой SESSION_SECRET (генерируется при старте) и текстовые логи
	IsDev bool `env:"DEV" envDefault:"false"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StorageConfig selects the repository backend
type StorageConfig struct {
	// Kind is memory, sqlite or redis
	Kind       string `env:"STORAGE" envDefault:"memory"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"authflow.db"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	Prefix   string `env:"PREFIX" envDefault:"authflow:"`
	DB       int    `env:"DB" envDefault:"0"`
}

// AuthConfig contains token and code lifetimes
type AuthConfig struct {
	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	OTPTTL          time.Duration `env:"OTP_TTL" envDefault:"10m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
}

// LoadServer reads .env and the environment
func LoadServer() (ServerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ServerConfig{}, err
	}
	return parseServer(nil)
}

func parseServer(environ map[string]string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := parse(&cfg, environ); err != nil {
		return cfg, err
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *ServerConfig) Sanitize() {
	c.Storage.Kind = strings.ToLower(strings.TrimSpace(c.Storage.Kind))
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
}

// Validate checks settings that cannot be defaulted
func (c *ServerConfig) Validate() error {
	switch c.Storage.Kind {
	case StorageMemory, StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("unknown storage %q: want memory, sqlite or redis", c.Storage.Kind)
	}

	if c.Storage.Kind == StorageSQLite && c.Storage.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for sqlite storage")
	}

	if c.Auth.SessionSecret == "" {
		if c.IsDev {
			return nil
		}
		return errors.New("SESSION_SECRET is required outside dev mode")
	}
	if len(c.Auth.SessionSecret) < minSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLen)
	}
	return nil
}

// Sanitize clamps non-positive timeouts to defaults
func (h *HTTPConfig) Sanitize() {
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 15 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 60 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// Sanitize clamps lifetimes to sane bounds
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL <= 0 {
		a.SessionTTL = 24 * time.Hour
	}
	if a.OTPTTL <= 0 {
		a.OTPTTL = 10 * time.Minute
	}
	// Код дольше часа не живет
	if a.OTPTTL > time.Hour {
		a.OTPTTL = time.Hour
	}
	if a.CleanupInterval < time.Second {
		a.CleanupInterval = 5 * time.Minute
	}
}
