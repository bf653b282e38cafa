package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "/ws", cfg.WSPath)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, EventsNone, cfg.EventsDriver)
	assert.Equal(t, []byte(devJwtSecret), cfg.JWTSecret)
	assert.Equal(t, 256, cfg.WSSendQueue)
	assert.Equal(t, 25*time.Second, cfg.WSPingInterval)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.KafkaBrokers)
	assert.Contains(t, cfg.CORSOrigins, "http://localhost:3000")
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"APP_ENV":           "Production",
		"JWT_ACCESS_SECRET": "s3cret",
		"STORE_DRIVER":      "postgres",
		"DATABASE_URL":      "postgres://localhost/chat",
		"EVENTS_DRIVER":     "kafka",
		"KAFKA_BROKERS":     "k1:9092, k2:9092",
		"WS_PING_INTERVAL":  "5s",
		"DB_MIGRATE":        "false",
		"CORS_ORIGINS":      "https://app.example",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.False(t, cfg.DBMigrate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.WSPingInterval)
	assert.Equal(t, []string{"https://app.example"}, cfg.CORSOrigins)
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"secret in production":  {"APP_ENV": "production"},
		"postgres without url":  {"STORE_DRIVER": "postgres"},
		"unknown store":         {"STORE_DRIVER": "sqlite"},
		"unknown events driver": {"EVENTS_DRIVER": "rabbit"},
		"bad duration":          {"JWT_TTL": "soon"},
		"bad bool":              {"DB_MIGRATE": "maybe"},
		"bad queue":             {"WS_SEND_QUEUE": "0"},
		"queue not a number":    {"WS_SEND_QUEUE": "lots"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(lookup(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config:")
		})
	}
}
