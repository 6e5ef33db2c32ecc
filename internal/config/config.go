package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/park285/chess-metrics/internal/rules"
)

const (
	defaultCacheTTLSec  = 3600
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type AppConfig struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":3000"`
	LiveAddr string `envconfig:"LIVE_ADDR"`

	RulesEngine string `envconfig:"RULES_ENGINE" default:"corentings"`

	RedisURL           string `envconfig:"REDIS_URL"`
	CacheTTLSec        int    `envconfig:"METRICS_CACHE_TTL" default:"3600"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	HistoryLimit       int    `envconfig:"HISTORY_LIMIT" default:"20"`
	MessagesDir        string `envconfig:"MESSAGES_DIR"`
	ShutdownTimeoutSec int    `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

func (c *AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the
// process environment. Variables already set win over the file.
func Load() (*AppConfig, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() error {
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.LiveAddr = strings.TrimSpace(c.LiveAddr)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
	c.RulesEngine = strings.ToLower(strings.TrimSpace(c.RulesEngine))

	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if _, err := rules.New(c.RulesEngine); err != nil {
		return fmt.Errorf("RULES_ENGINE: %w", err)
	}
	if c.CacheTTLSec <= 0 {
		c.CacheTTLSec = defaultCacheTTLSec
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.HistoryLimit > maxHistoryLimit {
		c.HistoryLimit = maxHistoryLimit
	}
	if c.ShutdownTimeoutSec <= 0 {
		c.ShutdownTimeoutSec = 10
	}
	return nil
}
