package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.Ledger.BaseCoins)
	assert.Equal(t, int64(1000), cfg.Settings.MinWithdrawalCoins)
	assert.Equal(t, int64(50), cfg.Settings.ReferralReward)
	assert.Equal(t, int64(25), cfg.Settings.InviterReward)
	assert.Equal(t, 5, cfg.Settings.MinReferralsForWithdrawal)
	assert.Equal(t, PolicyCalendarDay, cfg.Tasks.DailyPolicy)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := `
tasks:
  daily_policy: rolling
  rolling_hours: 24
settings:
  inviter_reward: 40
telegram:
  admin_ids: [42, 7]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("SETTINGS_REFERRAL_REWARD", "75")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, PolicyRolling, cfg.Tasks.DailyPolicy)
	assert.Equal(t, 24, cfg.Tasks.RollingHours)
	assert.Equal(t, int64(40), cfg.Settings.InviterReward)
	assert.Equal(t, int64(75), cfg.Settings.ReferralReward)
	assert.True(t, cfg.IsTelegramAdmin(42))
	assert.False(t, cfg.IsTelegramAdmin(8))
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Tasks: TasksConfig{DailyPolicy: PolicyCalendarDay, RollingHours: 72, Timezone: "UTC"}}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Tasks.DailyPolicy = "weekly"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Tasks.DailyPolicy = PolicyRolling
	cfg.Tasks.RollingHours = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Tasks.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Settings.InviterReward = -1
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", d.DSN())
}
