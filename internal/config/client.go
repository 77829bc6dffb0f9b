package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultClientTimeout is the per-request timeout of the client
const DefaultClientTimeout = 30 * time.Second

// ClientConfig is the CLI client configuration.
// Command-line flags override these values.
type ClientConfig struct {
	ServerURL string        `env:"AUTHFLOW_SERVER" envDefault:"http://localhost:8080"`
	DBPath    string        `env:"AUTHFLOW_DB"`
	LogLevel  string        `env:"AUTHFLOW_LOG_LEVEL" envDefault:"warn"`
	Timeout   time.Duration `env:"AUTHFLOW_TIMEOUT" envDefault:"30s"`
}

// LoadClient reads .env and the environment
func LoadClient() (ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ClientConfig{}, err
	}
	return parseClient(nil)
}

func parseClient(environ map[string]string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := parse(&cfg, environ); err != nil {
		return cfg, err
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize fills the token file path and clamps the timeout
func (c *ClientConfig) Sanitize() {
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultClientTimeout
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
}

// DefaultDBPath returns ~/.authflow/tokens.db, or ./authflow-tokens.db without a home directory
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "authflow-tokens.db"
	}
	return filepath.Join(home, ".authflow", "tokens.db")
}
