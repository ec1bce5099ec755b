package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/mentionguard?sslmode=disable")
	t.Setenv("DB_SCHEMA", "mentionguard_test")
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_APP_ID", "app-1")
	t.Setenv("USE_STRICT_CONFIG", "false")
}

func TestLoadConfig(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 30*time.Minute, cfg.MonitoringConfig.DefaultInterval)
		assert.Equal(t, 4, cfg.MonitoringConfig.Workers)
		assert.Equal(t, 300*time.Second, cfg.GateConfig.InitialTimeout)
		assert.Equal(t, 60*time.Second, cfg.GateConfig.FinalTimeout)
		assert.Equal(t, 2*time.Second, cfg.FixConfig.RateLimitRetryDelay)
		assert.Equal(t, "Mentions", cfg.FixConfig.MentionRoleName)
	})

	t.Run("reads overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("MONITOR_DEFAULT_INTERVAL", "5m")
		t.Setenv("GATE_FINAL_TIMEOUT", "90s")
		t.Setenv("MONITOR_WORKERS", "2")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, cfg.MonitoringConfig.DefaultInterval)
		assert.Equal(t, 90*time.Second, cfg.GateConfig.FinalTimeout)
		assert.Equal(t, 2, cfg.MonitoringConfig.Workers)
	})

	t.Run("fails without database url", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DB_URL", "")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DB_URL is not set")
	})

	t.Run("fails on invalid duration", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("GATE_INITIAL_TIMEOUT", "soon")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "GATE_INITIAL_TIMEOUT is not a valid duration")
	})

	t.Run("strict config requires alerts", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("USE_STRICT_CONFIG", "true")
		t.Setenv("SLACK_ALERT_WEBHOOK_URL", "")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "USE_STRICT_CONFIG=true")
	})
}
