package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := ParseConfig(v)

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, []string{"localhost:9094"}, cfg.Queue.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Zero(t, cfg.Worker.JobTimeout)
	assert.True(t, cfg.Jobs.Dedup)
	assert.Equal(t, "skintone", cfg.Pipeline.FaceDetector)
}

func TestParseConfigYAML(t *testing.T) {
	yaml := `
store:
  driver: redis
redis:
  host: cache
  ttl: 1h
queue:
  driver: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
worker:
  job_timeout: 90s
  simulation_delay: 2s
  load_test_mode: true
jobs:
  dedup: false
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	cfg, err := ParseConfig(v)

	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Queue.Kafka.Brokers)
	assert.Equal(t, "face-segmentation", cfg.Queue.Kafka.Topic)
	assert.Equal(t, 90*time.Second, cfg.Worker.JobTimeout)
	assert.Equal(t, 2*time.Second, cfg.Worker.SimulationDelay)
	assert.True(t, cfg.Worker.LoadTestMode)
	assert.False(t, cfg.Jobs.Dedup)
}

func TestEnvOverridesConfig(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "rabbitmq")
	t.Setenv("WORKER_CONCURRENCY", "8")

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	cfg, err := ParseConfig(v)

	require.NoError(t, err)
	assert.Equal(t, "rabbitmq", cfg.Queue.Driver)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("FACESVG_TEST_KEY", "value")

	assert.Equal(t, "value", GetEnv("FACESVG_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("FACESVG_TEST_MISSING", "fallback"))
}
