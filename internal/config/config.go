package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dukerupert/daybook/internal/push"
)

// Config is the process configuration, read from DAYBOOK_* environment
// variables and an optional .env file.
type Config struct {
	Port          string
	DBPath        string
	LogLevel      string
	LogFormat     string
	JWTSecret     string
	JWTAudience   string
	CronSecret    string
	ExpoURL       string
	ExpoToken     string
	Location      *time.Location
	SweepSchedule string
	RateLimit     float64
	RateBurst     int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DAYBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "daybook.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_audience", "authenticated")
	v.SetDefault("cron_secret", "")
	v.SetDefault("expo_url", push.DefaultURL)
	v.SetDefault("expo_access_token", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("sweep_schedule", "")
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)

	cfg := &Config{
		Port:          v.GetString("port"),
		DBPath:        v.GetString("db_path"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		JWTSecret:     v.GetString("jwt_secret"),
		JWTAudience:   v.GetString("jwt_audience"),
		CronSecret:    v.GetString("cron_secret"),
		ExpoURL:       v.GetString("expo_url"),
		ExpoToken:     v.GetString("expo_access_token"),
		SweepSchedule: v.GetString("sweep_schedule"),
		RateLimit:     v.GetFloat64("rate_limit"),
		RateBurst:     v.GetInt("rate_burst"),
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAYBOOK_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("DAYBOOK_JWT_SECRET is required")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("DAYBOOK_RATE_LIMIT and DAYBOOK_RATE_BURST must be positive")
	}
	return nil
}
