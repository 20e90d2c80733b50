/*
config.go - Application configuration

PURPOSE:
  Loads server, database, engine and scheduler settings from an optional
  TOML file plus GESTOR_-prefixed environment variables. Defaults are
  sensible for local development; production deploys override via env.

PRECEDENCE (highest wins):
  1. Environment variables (GESTOR_SERVER_PORT, GESTOR_DATABASE_PATH, ...)
  2. Config file (GESTOR_CONFIG path, or ./gestor.toml)
  3. Built-in defaults

SEE ALSO:
  - cmd/server/main.go: the only consumer
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// EngineConfig tunes the automation engine.
type EngineConfig struct {
	// SpendingLimit is the monthly expense ceiling for the built-in
	// spending check.
	SpendingLimit float64 `mapstructure:"spending_limit"`

	// RuleWindowDays is the dedup window for user alert rules.
	RuleWindowDays int `mapstructure:"rule_window_days"`
}

// SchedulerConfig tunes the background engine scheduler.
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads configuration from file and env. Env var overrides use prefix GESTOR_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "gestor.db")
	v.SetDefault("engine.spending_limit", 2000.0)
	v.SetDefault("engine.rule_window_days", 1)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("GESTOR_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("gestor")
	}

	v.SetEnvPrefix("GESTOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
