package config_test

import (
	"strings"
	"testing"
	"time"

	"tasklist/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "STORAGE_KEY", "SYNC_INTERVAL",
		"WRITE_TIMEOUT", "ALLOWED_USER_ID", "TIMEZONE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"DatabaseURL", cfg.DatabaseURL, "tasklist.db"},
		{"StorageKey", cfg.StorageKey, "@tasks"},
		{"SyncInterval", cfg.SyncInterval, time.Minute},
		{"WriteTimeout", cfg.WriteTimeout, 10 * time.Second},
		{"AllowedUserID", cfg.AllowedUserID, int64(0)},
		{"Location", cfg.Location, time.Local},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", " token ")
	t.Setenv("DATABASE_URL", "redis://localhost:6379/1")
	t.Setenv("STORAGE_KEY", "tasks:me")
	t.Setenv("SYNC_INTERVAL", "30s")
	t.Setenv("WRITE_TIMEOUT", "5")
	t.Setenv("ALLOWED_USER_ID", "424242")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TelegramToken != "token" {
		t.Errorf("TelegramToken = %q, want trimmed value", cfg.TelegramToken)
	}
	if cfg.DatabaseURL != "redis://localhost:6379/1" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.StorageKey != "tasks:me" {
		t.Errorf("StorageKey = %q", cfg.StorageKey)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.WriteTimeout != 5*time.Second {
		t.Errorf("WriteTimeout = %v", cfg.WriteTimeout)
	}
	if cfg.AllowedUserID != 424242 {
		t.Errorf("AllowedUserID = %d", cfg.AllowedUserID)
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestLoad_SyncIntervalZeroDisables(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("SYNC_INTERVAL", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0", cfg.SyncInterval)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing token", map[string]string{}, "TELEGRAM_TOKEN"},
		{"bad sync interval", map[string]string{"TELEGRAM_TOKEN": "t", "SYNC_INTERVAL": "soon"}, "SYNC_INTERVAL"},
		{"negative sync interval", map[string]string{"TELEGRAM_TOKEN": "t", "SYNC_INTERVAL": "-1m"}, "SYNC_INTERVAL"},
		{"zero write timeout", map[string]string{"TELEGRAM_TOKEN": "t", "WRITE_TIMEOUT": "0"}, "WRITE_TIMEOUT"},
		{"bad user id", map[string]string{"TELEGRAM_TOKEN": "t", "ALLOWED_USER_ID": "me"}, "ALLOWED_USER_ID"},
		{"unknown timezone", map[string]string{"TELEGRAM_TOKEN": "t", "TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed int64
		user    int64
		want    bool
	}{
		{"open to everyone", 0, 7, true},
		{"owner", 7, 7, true},
		{"stranger", 7, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{AllowedUserID: tt.allowed}
			if got := cfg.IsAllowed(tt.user); got != tt.want {
				t.Errorf("IsAllowed(%d) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}
