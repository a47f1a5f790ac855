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

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Worker.Count)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "starttls", cfg.SMTP.Security)
	assert.Equal(t, time.Hour, cfg.Drill.Grace)
	assert.Empty(t, cfg.Progress.RedisAddr)
	assert.False(t, cfg.Delivery.LogOnly)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("SMS_GATEWAY_URL", "http://sms.local/send")
	t.Setenv("DRILL_ALERT_GRACE", "30m")
	t.Setenv("DELIVERY_LOG_ONLY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, "http://sms.local/send", cfg.SMS.GatewayURL)
	assert.Equal(t, 30*time.Minute, cfg.Drill.Grace)
	assert.True(t, cfg.Delivery.LogOnly)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "SERVER_PORT", "70000"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero workers", "WORKER_COUNT", "0"},
		{"bad smtp security", "SMTP_SECURITY", "ssl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
