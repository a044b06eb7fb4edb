package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/erp")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TZ", "Africa/Lagos")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Env != "dev" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.NotifyWorkers != 4 || cfg.NotifyQueue != 256 {
		t.Fatalf("notify defaults: %d/%d", cfg.NotifyWorkers, cfg.NotifyQueue)
	}
	if cfg.OverdueInterval != time.Hour || cfg.DBTimeout != 5*time.Second {
		t.Fatalf("durations: %s %s", cfg.OverdueInterval, cfg.DBTimeout)
	}
	if cfg.ReminderCron != "0 8 * * 1" {
		t.Fatalf("cron: %q", cfg.ReminderCron)
	}
	if cfg.BotToken != "" {
		t.Fatalf("bot token should be optional")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/erp")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ADMIN_IDS", "10, 20,30")
	t.Setenv("NOTIFY_WORKERS", "8")
	t.Setenv("OVERDUE_INTERVAL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AdminIDs) != 3 || cfg.AdminIDs[2] != 30 {
		t.Fatalf("admin ids: %v", cfg.AdminIDs)
	}
	if cfg.NotifyWorkers != 8 || cfg.OverdueInterval != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/erp")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("NOTIFY_QUEUE", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative queue size")
	}
}

func TestMustEnvPanics(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing DATABASE_URL")
		}
	}()
	_, _ = Load()
}
