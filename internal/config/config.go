// Package config loads service configuration from the environment, with a
// .env file honored when present.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config carries every tunable of the service.
type Config struct {
	Port     int
	DataDir  string
	DBPath   string
	LogLevel string

	PollInterval time.Duration
	Workers      int
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	LeaseTTL     time.Duration

	CookieTTL     time.Duration
	SweepInterval time.Duration
	VaultKey      string

	CaptionLanguage string
	RetentionDays   int
}

// Load reads configuration from TUBEGRAB_* environment variables (a .env file
// is loaded first when present) over the documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("tubegrab")
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("db_path", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("workers", 2)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("backoff_base", 5*time.Second)
	v.SetDefault("backoff_cap", 60*time.Second)
	// Several multiples of the expected extraction latency; a worker that
	// dies keeps its job invisible for this long.
	v.SetDefault("lease_ttl", 10*time.Minute)

	v.SetDefault("cookie_ttl", 7*24*time.Hour)
	v.SetDefault("sweep_interval", time.Hour)
	v.SetDefault("vault_key", "")

	v.SetDefault("caption_language", "en")
	v.SetDefault("retention_days", 30)

	cfg := &Config{
		Port:            v.GetInt("port"),
		DataDir:         v.GetString("data_dir"),
		DBPath:          v.GetString("db_path"),
		LogLevel:        v.GetString("log_level"),
		PollInterval:    v.GetDuration("poll_interval"),
		Workers:         v.GetInt("workers"),
		MaxAttempts:     v.GetInt("max_attempts"),
		BackoffBase:     v.GetDuration("backoff_base"),
		BackoffCap:      v.GetDuration("backoff_cap"),
		LeaseTTL:        v.GetDuration("lease_ttl"),
		CookieTTL:       v.GetDuration("cookie_ttl"),
		SweepInterval:   v.GetDuration("sweep_interval"),
		VaultKey:        v.GetString("vault_key"),
		CaptionLanguage: v.GetString("caption_language"),
		RetentionDays:   v.GetInt("retention_days"),
	}
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataDir + "/tubegrab.db"
	}
	if cfg.VaultKey == "" {
		return nil, errors.New("TUBEGRAB_VAULT_KEY must be set")
	}
	if cfg.Workers < 1 || cfg.MaxAttempts < 1 {
		return nil, errors.New("workers and max_attempts must be positive")
	}
	return cfg, nil
}
