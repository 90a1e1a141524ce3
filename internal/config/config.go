package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	StorageKey    string
	SyncInterval  time.Duration
	WriteTimeout  time.Duration
	// AllowedUserID restricts the bot to one Telegram user; 0 allows anyone.
	AllowedUserID int64
	Location      *time.Location
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken: env("TELEGRAM_TOKEN"),
		DatabaseURL:   env("DATABASE_URL"),
		StorageKey:    env("STORAGE_KEY"),
		SyncInterval:  time.Minute,
		WriteTimeout:  10 * time.Second,
		Location:      time.Local,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "tasklist.db"
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = "@tasks"
	}

	if raw := env("SYNC_INTERVAL"); raw != "" {
		d, err := parseDuration(raw)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("SYNC_INTERVAL: invalid duration %q", raw)
		}
		cfg.SyncInterval = d
	}

	if raw := env("WRITE_TIMEOUT"); raw != "" {
		d, err := parseDuration(raw)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("WRITE_TIMEOUT: invalid duration %q", raw)
		}
		cfg.WriteTimeout = d
	}

	if raw := env("ALLOWED_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("ALLOWED_USER_ID: %w", err)
		}
		cfg.AllowedUserID = id
	}

	if raw := env("TIMEZONE"); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// IsAllowed reports whether the user may talk to the bot.
func (c Config) IsAllowed(userID int64) bool {
	return c.AllowedUserID == 0 || c.AllowedUserID == userID
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// parseDuration accepts Go durations and bare integers as seconds.
func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
