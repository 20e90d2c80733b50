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
	assert.Equal(t, "gestor.db", cfg.Database.Path)
	assert.Equal(t, 2000.0, cfg.Engine.SpendingLimit)
	assert.Equal(t, 1, cfg.Engine.RuleWindowDays)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GESTOR_SERVER_PORT", "3000")
	t.Setenv("GESTOR_ENGINE_SPENDING_LIMIT", "1500")
	t.Setenv("GESTOR_SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 1500.0, cfg.Engine.SpendingLimit)
	assert.False(t, cfg.Scheduler.Enabled)
}
