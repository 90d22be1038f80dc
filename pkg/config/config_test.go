package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sparklab?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL)
	assert.Equal(t, 2*time.Second, cfg.EngineDelay)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CorsOrigins)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, 3, cfg.JobMaxAttempts)
	assert.True(t, cfg.RunMigrations)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, log.InfoLevel, cfg.Level())
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ENGINE_DELAY", "250ms")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.EngineDelay)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, log.DebugLevel, cfg.Level())
}

func TestFromEnvMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "x")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestFromEnvInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("ENGINE_DELAY", "soon")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "ENGINE_DELAY")
}
