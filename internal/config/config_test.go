package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_URL", "SAVE_INTERVAL", "AMQP_URL", "OTEL_ENDPOINT"} {
		unsetenv(t, key)
	}

	cfg, err := Load()
	assert.NoError(err)
	assert.Equal(8080, cfg.Port)
	assert.Equal("sqlite3", cfg.DBDriver)
	assert.Equal("openplay.db", cfg.DBURL)
	assert.Equal(30*time.Second, cfg.SaveInterval)
	assert.Equal(24*time.Hour, cfg.EndedRetention)
	assert.Equal(10, cfg.RateLimitRequests)
	assert.Equal("openplay.snapshots", cfg.AMQPExchange)
	assert.Empty(cfg.AMQPURL)
}

func TestLoadOverrides(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_URL", "postgres://openplay@localhost/openplay")
	t.Setenv("SAVE_INTERVAL", "5s")

	cfg, err := Load()
	assert.NoError(err)
	assert.Equal(9090, cfg.Port)
	assert.Equal("pgx", cfg.DBDriver)
	assert.Equal(5*time.Second, cfg.SaveInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load()
	assert.ErrorContains(t, err, "parse env:")

	t.Setenv("PORT", "8080")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_DRIVER")
}

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
