package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 587, cfg.SMTPPrimary.Port)
	assert.False(t, cfg.SMTPPrimary.SSL)
	assert.Equal(t, 465, cfg.SMTPSecondary.Port)
	assert.True(t, cfg.SMTPSecondary.SSL)
	assert.Equal(t, 5*time.Second, cfg.MailProbeTimeout)
}

func TestTransportsPriorityOrder(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FALLBACK_HOST", "smtp2.example.com")
	cfg := Load()

	ts := cfg.Transports()
	assert.Len(t, ts, 2)
	assert.Equal(t, "smtp.example.com", ts[0].Host)
	assert.Equal(t, "smtp2.example.com", ts[1].Host)
}

func TestTransportsSkipUnconfigured(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_FALLBACK_HOST", "smtp2.example.com")
	cfg := Load()

	ts := cfg.Transports()
	assert.Len(t, ts, 1)
	assert.Equal(t, "smtp2.example.com", ts[0].Host)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("ACCESS_TTL", "2h")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("SMTP_SECURE", "true")
	cfg := Load()
	assert.Equal(t, 2*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.True(t, cfg.SMTPPrimary.SSL)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	cfg := Load()
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}
