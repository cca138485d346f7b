package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "root:secret@tcp(localhost:3306)/clinic?charset=utf8mb4&parseTime=True&loc=UTC", cfg.Database.DSN)
	assert.Equal(t, 9, cfg.Schedule.StartHour)
	assert.Equal(t, 18, cfg.Schedule.EndHour)
	assert.Equal(t, 60, cfg.Schedule.IntervalMinutes)
	assert.Equal(t, 7, cfg.Schedule.WindowDays)
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CLINIC_TIMEZONE", "UTC")
	t.Setenv("REDIS_LOCK_TTL", "2s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Contains(t, cfg.Database.DSN, "port=5432")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Redis.LockTTL)

	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"JWT_EXPIRATION_MINUTES": "soon",
		"CLINIC_START_HOUR":      "nine",
		"REDIS_LOCK_TTL":         "forever",
		"CLINIC_TIMEZONE":        "Mars/Olympus",
		"DB_DRIVER":              "oracle",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
