package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"quiz-duel-service/internal/domain"
)

// Rating backends accepted by ratings.backend. Empty picks one from the configured stores.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Ratings struct {
		Backend string `yaml:"backend"`
	} `yaml:"ratings"`
	Bank struct {
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"bank"`
	Duel struct {
		SettleDelay     string `yaml:"settle_delay"`
		IdleTimeout     string `yaml:"idle_timeout"`
		LeaderboardSize int    `yaml:"leaderboard_size"`
	} `yaml:"duel"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects backend choices whose store is not configured and out-of-range duel settings.
func (c Config) Validate() error {
	switch c.Ratings.Backend {
	case "", BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("ratings backend %q needs redis.addr", c.Ratings.Backend)
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("ratings backend %q needs sqlite.path", c.Ratings.Backend)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("ratings backend %q needs postgres.url", c.Ratings.Backend)
		}
	default:
		return fmt.Errorf("unknown ratings backend %q", c.Ratings.Backend)
	}
	if c.Duel.LeaderboardSize < 0 || c.Duel.LeaderboardSize > domain.MaxLeaderboardSize {
		return fmt.Errorf("duel.leaderboard_size must be between 0 and %d", domain.MaxLeaderboardSize)
	}
	for name, raw := range map[string]string{
		"redis.ttl":         c.Redis.TTL,
		"bank.ttl":          c.Bank.TTL,
		"duel.settle_delay": c.Duel.SettleDelay,
		"duel.idle_timeout": c.Duel.IdleTimeout,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d < 0 {
			return fmt.Errorf("%s: invalid duration %q", name, raw)
		}
	}
	// Duel claims in Redis are refreshed once per round, so they must outlive one.
	if c.Redis.Addr != "" && c.Redis.TTL != "" && c.Duel.IdleTimeout != "" {
		ttl, _ := time.ParseDuration(c.Redis.TTL)
		idle, _ := time.ParseDuration(c.Duel.IdleTimeout)
		if idle > 0 && ttl <= idle {
			return fmt.Errorf("redis.ttl %s must exceed duel.idle_timeout %s", ttl, idle)
		}
	}
	return nil
}

// RatingsBackend resolves the configured backend, preferring postgres, then redis, then sqlite.
func (c Config) RatingsBackend() string {
	if c.Ratings.Backend != "" {
		return c.Ratings.Backend
	}
	switch {
	case c.Postgres.URL != "":
		return BackendPostgres
	case c.Redis.Addr != "":
		return BackendRedis
	case c.SQLite.Path != "":
		return BackendSQLite
	}
	return BackendMemory
}

func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Duration parses a duration string or returns the fallback if empty.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
