package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, "adoption_db", cfg.DBConfig.DBName)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ADOPTION_SERVICE_PORT", "9090")
	t.Setenv("ADOPTION_STORAGE", "memory")
	t.Setenv("ADOPTION_LOCK_TIMEOUT", "250ms")
	t.Setenv("ADOPTION_EVENTS_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("JWT_ACCESS_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.JWTConfig.AccessTTL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("ADOPTION_STORAGE", "sqlite")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("default secret in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := Load()
		assert.Error(t, err)
	})
}
