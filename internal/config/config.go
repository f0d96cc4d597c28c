// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Settings SettingsConfig `mapstructure:"settings"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// HTTPConfig holds API server configuration.
type HTTPConfig struct {
	Addr           string          `mapstructure:"addr"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds per-user request limits.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// AuthConfig holds session token configuration.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// RedisConfig holds the session store connection. An empty Addr keeps
// sessions in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LedgerConfig holds coin ledger configuration.
type LedgerConfig struct {
	BaseCoins   int64         `mapstructure:"base_coins"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// SettingsConfig holds the values seeded into the settings row.
type SettingsConfig struct {
	MinWithdrawalCoins        int64 `mapstructure:"min_withdrawal_coins"`
	ReferralReward            int64 `mapstructure:"referral_reward"`
	InviterReward             int64 `mapstructure:"inviter_reward"`
	MinReferralsForWithdrawal int   `mapstructure:"min_referrals_for_withdrawal"`
}

// Daily task cooldown policies.
const (
	PolicyCalendarDay = "calendar_day"
	PolicyRolling     = "rolling"
)

// TasksConfig selects the cooldown policy for daily tasks.
type TasksConfig struct {
	DailyPolicy  string `mapstructure:"daily_policy"`
	RollingHours int    `mapstructure:"rolling_hours"`
	Timezone     string `mapstructure:"timezone"`
}

// Location resolves the configured timezone.
func (t *TasksConfig) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid tasks.timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

// TelegramConfig holds the admin review bot configuration.
type TelegramConfig struct {
	Token    string  `mapstructure:"token"`
	AdminIDs []int64 `mapstructure:"admin_ids"`
}

// AuditConfig holds the balance audit schedule.
type AuditConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, AUTH_JWT_SECRET, TASKS_DAILY_POLICY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Tasks.DailyPolicy {
	case PolicyCalendarDay:
	case PolicyRolling:
		if c.Tasks.RollingHours <= 0 {
			return fmt.Errorf("tasks.rolling_hours must be positive for the rolling policy")
		}
	default:
		return fmt.Errorf("unknown tasks.daily_policy %q", c.Tasks.DailyPolicy)
	}
	if _, err := c.Tasks.Location(); err != nil {
		return err
	}
	if c.Ledger.BaseCoins < 0 {
		return fmt.Errorf("ledger.base_coins must not be negative")
	}
	s := c.Settings
	if s.MinWithdrawalCoins < 0 || s.ReferralReward < 0 || s.InviterReward < 0 || s.MinReferralsForWithdrawal < 0 {
		return fmt.Errorf("settings values must not be negative")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rewardhub")
	v.SetDefault("database.name", "rewardhub")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", "30s")
	v.SetDefault("http.rate_limit.rps", 5)
	v.SetDefault("http.rate_limit.burst", 10)

	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("ledger.base_coins", 100)
	v.SetDefault("ledger.lock_timeout", "5s")

	v.SetDefault("settings.min_withdrawal_coins", 1000)
	v.SetDefault("settings.referral_reward", 50)
	v.SetDefault("settings.inviter_reward", 25)
	v.SetDefault("settings.min_referrals_for_withdrawal", 5)

	v.SetDefault("tasks.daily_policy", PolicyCalendarDay)
	v.SetDefault("tasks.rolling_hours", 72)
	v.SetDefault("tasks.timezone", "UTC")

	v.SetDefault("audit.interval", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// IsTelegramAdmin checks if a Telegram user ID is in the admin list.
func (c *Config) IsTelegramAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
