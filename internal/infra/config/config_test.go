package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToMemoryBackends(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.MongoURI)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, BrokerMemory, cfg.RealtimeBroker)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCYLLA_HOSTS", "s1,s2")
	t.Setenv("RATE_LIMIT_REQUESTS", "50")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"s1", "s2"}, cfg.ScyllaHosts)
	assert.Equal(t, 50, cfg.RateLimitRequests)
	assert.Equal(t, "http://minio:9000", cfg.S3PublicEndpoint)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":      {"SESSION_TTL": "forever"},
		"bad bool":          {"S3_USE_SSL": "maybe"},
		"unknown broker":    {"REALTIME_BROKER": "carrier-pigeon"},
		"redis without url": {"REALTIME_BROKER": "redis"},
		"nats without url":  {"REALTIME_BROKER": "nats"},
		"prod needs secret": {"APP_ENV": "prod"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "dev")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
