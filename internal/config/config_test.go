package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, "postgres", cfg.CounterBackend)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Len(t, cfg.Courses, 3)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.ObjectStorageEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_TIMEZONE", "Asia/Kolkata")
	t.Setenv("CERTIFICATE_COURSES", "Intro to FDM,Resin Printing")
	t.Setenv("RATE_LIMIT_PER_MIN", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, []string{"Intro to FDM", "Resin Printing"}, cfg.Courses)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}
