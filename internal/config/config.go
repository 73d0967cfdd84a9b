package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort     string `env:"PORT,default=8080"`
	DatabaseType   string `env:"DB_TYPE,default=sqlite"`
	DatabasePath   string `env:"DB_PATH,default=./rosenkoenig.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH,default=./migrations"`

	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,default=720h"`

	// RulesScript overrides the embedded rule script when set
	RulesScript string `env:"RULES_SCRIPT"`
	// PlayTurnURL sends turns to an external function instead of the local engine
	PlayTurnURL string        `env:"PLAY_TURN_URL"`
	PlayTurnTTL time.Duration `env:"PLAY_TURN_TIMEOUT,default=10s"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS,default=*"`
	RateLimit      int           `env:"RATE_LIMIT,default=60"`
	RateWindow     time.Duration `env:"RATE_WINDOW,default=1m"`

	// PGNotify bridges pg_notify change events into the realtime feed
	PGNotify bool `env:"PG_NOTIFY,default=false"`

	Development bool   `env:"DEVELOPMENT,default=false"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// Load reads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment without touching .env files
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseType {
	case "sqlite", "sqlite3":
		if c.DatabasePath == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DatabaseType)
	}

	if c.PGNotify && c.DatabaseType != "postgres" && c.DatabaseType != "postgresql" {
		return errors.New("PG_NOTIFY requires DB_TYPE=postgres")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	return nil
}

// SigningKey returns the token secret, falling back to a per-process random
// key in development so guest tokens still work locally.
func (c *Config) SigningKey() ([]byte, error) {
	if c.TokenSecret != "" {
		return []byte(c.TokenSecret), nil
	}
	if !c.Development {
		return nil, errors.New("TOKEN_SECRET is required outside development")
	}
	return devKey, nil
}

var devKey = func() []byte {
	host, _ := os.Hostname()
	return []byte("rosenkoenig-dev-" + host + "-" + time.Now().Format(time.RFC3339Nano))
}()
