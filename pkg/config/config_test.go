package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected env=development, got %s", cfg.Env)
	}
	if cfg.Store.PrimaryDir == cfg.Store.BackupDir {
		t.Error("primary and backup dirs must differ by default")
	}
	if cfg.Dispatch.MaxConcurrent < 1 {
		t.Errorf("expected MaxConcurrent >= 1, got %d", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Dispatch.PaceMax < cfg.Dispatch.PaceMin {
		t.Error("pace window inverted")
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Database.Enabled() {
		t.Error("archive must be disabled without DATABASE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENV", "production")
	os.Setenv("DISPATCH_MAX_CONCURRENT", "5")
	os.Setenv("RETRY_BASE_DELAY", "250ms")
	os.Setenv("DATABASE_URL", "postgres://localhost/limitpulse")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env=production, got %s", cfg.Env)
	}
	if cfg.Dispatch.MaxConcurrent != 5 {
		t.Errorf("expected MaxConcurrent=5, got %d", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("expected BaseDelay=250ms, got %v", cfg.Retry.BaseDelay)
	}
	if !cfg.Database.Enabled() {
		t.Error("archive must be enabled with DATABASE_URL")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad env", map[string]string{"ENV": "qa"}},
		{"same dirs", map[string]string{"STORE_PRIMARY_DIR": "d", "STORE_BACKUP_DIR": "d"}},
		{"zero concurrency", map[string]string{"DISPATCH_MAX_CONCURRENT": "0"}},
		{"inverted pace window", map[string]string{"DISPATCH_PACE_MIN": "1s", "DISPATCH_PACE_MAX": "100ms"}},
		{"zero attempts", map[string]string{"RETRY_MAX_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer os.Clearenv()

			if _, err := Load(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
