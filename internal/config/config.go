package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load reads .env (when present) and the process environment. It does not
// require a Discord token, so tooling subcommands can run without one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// LoadConfig is Load plus the checks needed to connect to Discord.
func LoadConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.QueueCapacity < 1:
		return ErrConfig("QUEUE_CAPACITY must be at least 1")
	case c.HistoryCapacity < 0:
		return ErrConfig("HISTORY_CAPACITY must not be negative")
	case c.HistoryCapacity > c.QueueCapacity:
		return ErrConfig("HISTORY_CAPACITY must not exceed QUEUE_CAPACITY")
	case c.ResolverCacheSize < 1:
		return ErrConfig("RESOLVER_CACHE_SIZE must be at least 1")
	case c.ResolveWorkers < 1:
		return ErrConfig("RESOLVE_WORKERS must be at least 1")
	case c.ResolveRatePerSec <= 0:
		return ErrConfig("RESOLVE_RATE_PER_SEC must be positive")
	case c.ResolveTimeout <= 0:
		return ErrConfig("RESOLVE_TIMEOUT must be positive")
	case c.MaxResolveFailures < 1:
		return ErrConfig("MAX_RESOLVE_FAILURES must be at least 1")
	}
	return nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
