package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("chat-service")
	require.NoError(t, err)

	assert.Equal(t, "chat-service", cfg.App.Name)
	assert.Equal(t, ":21010", cfg.Server.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.HTTP.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Redis.Timeout)
	assert.Equal(t, "chat-events", cfg.Kafka.Topic)
	assert.Equal(t, 2000, cfg.Chat.MaxMessageLength)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig("archive-service")
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "s3cret", cfg.App.JWTSecret)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "archive-service-group", cfg.Kafka.GroupID)
}

func TestLoadConfig_UnknownService(t *testing.T) {
	_, err := LoadConfig("nope")
	assert.Error(t, err)
}
