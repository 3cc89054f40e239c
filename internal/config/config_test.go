package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	for _, k := range []string{
		"FOCUSDO_DB_PATH", "FOCUSDO_BACKUP_DIR", "FOCUSDO_LOG_PATH",
		"FOCUSDO_LOG_LEVEL", "FOCUSDO_FOCUS_MINUTES", "FOCUSDO_TICK_INTERVAL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(filepath.Join(home, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "INFO" || cfg.FocusMinutes != 25 || cfg.TickInterval != 100*time.Millisecond {
		t.Fatalf("defaults = %+v", cfg)
	}
	if filepath.Base(cfg.DBPath) != "focusdo.db" || filepath.Base(filepath.Dir(cfg.DBPath)) != "focusdo" {
		t.Fatalf("db path = %s", cfg.DBPath)
	}
	if filepath.Base(cfg.LogPath) != "focusdo.log" {
		t.Fatalf("log path = %s", cfg.LogPath)
	}
	if cfg.BackupDir != home {
		t.Fatalf("backup dir = %s, want home %s", cfg.BackupDir, home)
	}
}

func TestBackupDirPrefersDownloads(t *testing.T) {
	home := isolate(t)
	dl := filepath.Join(home, "Downloads")
	if err := os.Mkdir(dl, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackupDir != dl {
		t.Fatalf("backup dir = %s, want %s", cfg.BackupDir, dl)
	}
}

func TestLoadFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.yaml")
	data := "db_path: /tmp/x.db\nfocus_minutes: 50\ntick_interval: 250ms\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.FocusMinutes != 50 || cfg.TickInterval != 250*time.Millisecond || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(path, []byte("focus_minutes: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOCUSDO_FOCUS_MINUTES", "15")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FocusMinutes != 15 {
		t.Fatalf("focus minutes = %d, want 15", cfg.FocusMinutes)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(path, []byte("focus_minutes: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default ok", func(*Config) {}, ""},
		{"zero minutes", func(c *Config) { c.FocusMinutes = 0 }, "focus_minutes"},
		{"too many minutes", func(c *Config) { c.FocusMinutes = 601 }, "focus_minutes"},
		{"tick too fast", func(c *Config) { c.TickInterval = time.Millisecond }, "tick_interval"},
		{"tick too slow", func(c *Config) { c.TickInterval = 2 * time.Second }, "tick_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "nested", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written default: %v", err)
	}
	if cfg.FocusMinutes != 25 || cfg.TickInterval != 100*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := WriteDefault(path); err == nil {
		t.Fatal("WriteDefault should not overwrite an existing file")
	}
}

func TestFocusDuration(t *testing.T) {
	c := Config{FocusMinutes: 45}
	if c.FocusDuration() != 45*time.Minute {
		t.Fatalf("FocusDuration = %v", c.FocusDuration())
	}
}
