package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := SaveGlobal(path, &Global{DefaultSession: "work"}); err != nil {
		t.Fatalf("SaveGlobal() error = %v", err)
	}
	loaded, err := LoadGlobal(path)
	if err != nil {
		t.Fatalf("LoadGlobal() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
}

func TestLoadGlobalMissing(t *testing.T) {
	if _, err := LoadGlobal("/nonexistent/config.toml"); err == nil {
		t.Error("LoadGlobal() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := SaveGlobal(path, &Global{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestLoadDeskMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadDesk(filepath.Join(t.TempDir(), "desk.toml"))
	if err != nil {
		t.Fatalf("LoadDesk() error = %v", err)
	}
	if cfg.Router.MenuDebounce.Duration != 3*time.Second {
		t.Errorf("MenuDebounce = %v, want 3s", cfg.Router.MenuDebounce)
	}
	if cfg.Router.AckDelay.Duration != 500*time.Millisecond {
		t.Errorf("AckDelay = %v, want 500ms", cfg.Router.AckDelay)
	}
	if cfg.AMQP.URL != "" {
		t.Errorf("AMQP.URL = %q, want empty", cfg.AMQP.URL)
	}
}

func TestLoadDesk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.toml")
	content := `
greeting_message = "Hi! Pick a department:"

[[queues]]
name = "Sales"
greeting_message = "Sales here."

[[queues]]
name = "Support"
greeting_message = "Support here."

[router]
menu_debounce = "5s"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadDesk(path)
	if err != nil {
		t.Fatalf("LoadDesk() error = %v", err)
	}
	if cfg.GreetingMessage != "Hi! Pick a department:" {
		t.Errorf("GreetingMessage = %q", cfg.GreetingMessage)
	}
	if len(cfg.Queues) != 2 || cfg.Queues[1].Name != "Support" {
		t.Fatalf("Queues = %+v, want Sales, Support", cfg.Queues)
	}
	if cfg.Router.MenuDebounce.Duration != 5*time.Second {
		t.Errorf("MenuDebounce = %v, want 5s", cfg.Router.MenuDebounce)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Router.AckDelay.Duration != 500*time.Millisecond {
		t.Errorf("AckDelay = %v, want default 500ms", cfg.Router.AckDelay)
	}
	if cfg.Outbox.Burst != 5 {
		t.Errorf("Outbox.Burst = %d, want default 5", cfg.Outbox.Burst)
	}
}

func TestLoadDeskInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.toml")
	if err := os.WriteFile(path, []byte("[router]\nack_delay = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDesk(path); err == nil {
		t.Error("LoadDesk() expected error for invalid duration")
	}
}

func TestDeskRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.toml")
	cfg := Defaults()
	cfg.Queues = []Queue{{Name: "Billing", GreetingMessage: "Billing desk."}}

	if err := SaveDesk(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadDesk(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Queues) != 1 || loaded.Queues[0].Name != "Billing" {
		t.Errorf("Queues = %+v, want [Billing]", loaded.Queues)
	}
	if loaded.Router.MenuDebounce.Duration != 3*time.Second {
		t.Errorf("MenuDebounce = %v after round trip, want 3s", loaded.Router.MenuDebounce)
	}
}
