package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL   string
	Host          string
	Port          string
	JwtSecret     string
	JwtTTL        time.Duration
	LogLevel      string
	CorsOrigins   []string
	RunMigrations bool

	// Rate limiting is enabled only when RedisURL is set.
	RedisURL           string
	RateLimitPerMinute int

	EngineDelay        time.Duration
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	JobMaxAttempts     int
	JobStaleAfter      time.Duration
}

// LoadConfig reads .env and the environment, and exits the process when a
// required setting is missing.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warnf("No .env file loaded: %v", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Host:        getEnv("HOST", "127.0.0.1"),
		Port:        getEnv("PORT", "8080"),
		JwtSecret:   os.Getenv("JWT_SECRET"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CorsOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.JwtTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EngineDelay, err = getDuration("ENGINE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerPollInterval, err = getDuration("WORKER_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.JobStaleAfter, err = getDuration("JOB_STALE_AFTER", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = getInt("WORKER_CONCURRENCY", 2); err != nil {
		return nil, err
	}
	if cfg.JobMaxAttempts, err = getInt("JOB_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RunMigrations, err = getBool("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}

	if cfg.JwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set. This is critical for authentication")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.JobMaxAttempts < 1 {
		cfg.JobMaxAttempts = 1
	}

	return cfg, nil
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
