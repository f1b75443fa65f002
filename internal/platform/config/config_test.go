package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.Admin.DeleteWindow)
	assert.Equal(t, 1500*time.Millisecond, cfg.Capture.SubmitDelay)
	assert.Equal(t, time.Second, cfg.Capture.ExitIntentDelay)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Remote.OutboxEnabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.RateLimit.CaptureRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LEAD_ADDR", ":9090")
	t.Setenv("LEAD_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LEAD_SUBMIT_DELAY", "0s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Zero(t, cfg.Capture.SubmitDelay)
}

func TestFromEnvParseError(t *testing.T) {
	t.Setenv("LEAD_SUBMIT_DELAY", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidateStorageDriver(t *testing.T) {
	t.Run("redis requires url", func(t *testing.T) {
		t.Setenv("LEAD_STORAGE_DRIVER", DriverRedis)
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LEAD_REDIS_URL")
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		t.Setenv("LEAD_STORAGE_DRIVER", DriverPostgres)
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LEAD_POSTGRES_DSN")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("LEAD_STORAGE_DRIVER", "floppy")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
