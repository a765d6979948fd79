package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"telegram:",
		"  token: \"123:abc\"",
		"  owner_user_ids: [42]",
		"course:",
		"  path: ./course.json",
		"timezone: Asia/Singapore",
		"dry_run: true",
		"logging:",
		"  level: DEBUG",
		"  console: true",
		"storage:",
		"  driver: file",
		"  path: ./data/subs.db",
		"digest:",
		"  enabled: true",
		"http:",
		"  enabled: true",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("Token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("OwnerUserIDs = %v", cfg.Telegram.OwnerUserIDs)
	}
	if !cfg.DryRun {
		t.Fatal("DryRun not decoded")
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("Storage.Driver = %q", cfg.Storage.Driver)
	}
	// Defaults for enabled-but-unset sections.
	if cfg.Digest.At != "08:00" {
		t.Fatalf("Digest.At default = %q", cfg.Digest.At)
	}
	if cfg.HTTP.Addr != "127.0.0.1:8880" {
		t.Fatalf("HTTP.Addr default = %q", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"telegram:",
		"  token: \"123:abc\"",
		"  tokn_typo: oops",
	}, "\n"))
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadExpandsTokenEnv(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "999:secret")
	path := writeConfig(t, strings.Join([]string{
		"telegram:",
		"  token: ${TEST_BOT_TOKEN}",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "999:secret" {
		t.Fatalf("Token = %q, want expanded env value", cfg.Telegram.Token)
	}
}

func TestDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"1:a\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Timezone != DefaultTimezone {
		t.Fatalf("Timezone = %q, want %q", cfg.Timezone, DefaultTimezone)
	}
	if cfg.Logging.Level != "INFO" {
		t.Fatalf("Logging.Level = %q", cfg.Logging.Level)
	}
	if !cfg.Logging.Console {
		t.Fatal("console logging must default on when no sink is configured")
	}
	if cfg.HTTP.Addr != "" {
		t.Fatalf("disabled http must not get an addr, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadJSONConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{"telegram":{"token":"1:a"},"timezone":"UTC"}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("Timezone = %q", cfg.Timezone)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("reminders.send_timeout", "15s")
	if err != nil {
		t.Fatalf("ParseDurationField error: %v", err)
	}
	if d != 15*time.Second {
		t.Fatalf("d = %v", d)
	}
	if _, err := ParseDurationField("reminders.send_timeout", "soon"); err == nil {
		t.Fatal("expected error for invalid duration")
	}

	d, err = ParseDurationOrDefault("telegram.poll_timeout", "", 10*time.Second)
	if err != nil {
		t.Fatalf("ParseDurationOrDefault error: %v", err)
	}
	if d != 10*time.Second {
		t.Fatalf("default = %v", d)
	}
}
