// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the exchange daemon.
type Config struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	InitialAdmin    string        `mapstructure:"initial_admin"`
	JournalPath     string        `mapstructure:"journal_path"`
	MaxFills        int           `mapstructure:"max_fills"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	ExpiryInterval  time.Duration `mapstructure:"expiry_interval"`
	WebhookTimeout  time.Duration `mapstructure:"webhook_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from COMEX_* environment variables, applies
// defaults, and validates values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("comex")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("initial_admin", "root")
	v.SetDefault("journal_path", "comex.db")
	v.SetDefault("max_fills", 128)
	v.SetDefault("breaker_cooldown", time.Hour)
	v.SetDefault("expiry_interval", time.Second)
	v.SetDefault("webhook_timeout", 5*time.Second)
	v.SetDefault("read_timeout", 5*time.Second)
	v.SetDefault("write_timeout", 10*time.Second)
	v.SetDefault("idle_timeout", 60*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid COMEX_PORT: %d, must be between 1 and 65535", cfg.Port)
	}
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid COMEX_LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.InitialAdmin == "" {
		return nil, fmt.Errorf("COMEX_INITIAL_ADMIN must not be empty")
	}
	if cfg.JournalPath == "" {
		return nil, fmt.Errorf("COMEX_JOURNAL_PATH must not be empty")
	}
	if cfg.MaxFills < 1 {
		return nil, fmt.Errorf("invalid COMEX_MAX_FILLS: %d, must be at least 1", cfg.MaxFills)
	}
	for name, d := range map[string]time.Duration{
		"COMEX_BREAKER_COOLDOWN": cfg.BreakerCooldown,
		"COMEX_EXPIRY_INTERVAL":  cfg.ExpiryInterval,
		"COMEX_WEBHOOK_TIMEOUT":  cfg.WebhookTimeout,
		"COMEX_READ_TIMEOUT":     cfg.ReadTimeout,
		"COMEX_WRITE_TIMEOUT":    cfg.WriteTimeout,
		"COMEX_IDLE_TIMEOUT":     cfg.IdleTimeout,
		"COMEX_SHUTDOWN_TIMEOUT": cfg.ShutdownTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive duration", name)
		}
	}

	return &cfg, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
