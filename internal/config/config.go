package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDBPath        = "./dev.db"
	defaultPort          = "8080"
	defaultMigrationsDir = "migrations"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env           string
	Port          string
	DBPath        string
	MigrationsDir string

	AdminEmail    string
	AdminPassword string
	SessionSecret string

	Log      LogConfig
	Redis    RedisConfig
	Backfill BackfillConfig

	QuoteCacheTTL time.Duration
	StoreTimeout  time.Duration
}

// LogConfig selects the zap level and an optional rotated log file.
type LogConfig struct {
	Level string
	File  string
}

// RedisConfig contains Redis connection parameters. An empty Addr disables the quote cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BackfillConfig drives the periodic from-price backfill. A zero Interval disables the worker.
type BackfillConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Load reads environment variables and returns a populated Config.
// envFiles default to .env; missing files are ignored and never override the real environment.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		Env:           getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", defaultPort),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		MigrationsDir: getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}

	var err error
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.Backfill.BatchSize, err = getEnvInt("BACKFILL_BATCH_SIZE", 500); err != nil {
		return Config{}, err
	}
	if cfg.Backfill.BatchSize < 1 {
		return Config{}, fmt.Errorf("invalid BACKFILL_BATCH_SIZE: must be at least 1")
	}
	if cfg.Backfill.Interval, err = parseDurationEnv("BACKFILL_INTERVAL", "0"); err != nil {
		return Config{}, fmt.Errorf("invalid BACKFILL_INTERVAL: %w", err)
	}
	if cfg.QuoteCacheTTL, err = parseDurationEnv("QUOTE_CACHE_TTL", "10m"); err != nil {
		return Config{}, fmt.Errorf("invalid QUOTE_CACHE_TTL: %w", err)
	}
	if cfg.StoreTimeout, err = parseDurationEnv("STORE_TIMEOUT", "3s"); err != nil {
		return Config{}, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// IsDev reports whether the server runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Warnings lists settings that are missing but not fatal.
func (c Config) Warnings() []string {
	var out []string
	if c.AdminEmail == "" {
		out = append(out, "ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		out = append(out, "ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	return out
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
