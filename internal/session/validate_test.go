package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "support2", false},
		{"valid with hyphen", "front-desk", false},
		{"valid with underscore", "front_desk", false},
		{"valid single char", "a", false},
		{"valid max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "front desk", true},
		{"dot", "front.desk", true},
		{"too long", strings.Repeat("a", 65), true},
		{"leading hyphen", "-desk", true},
		{"leading underscore", "_desk", true},
		{"slash", "front/desk", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.input, err)
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got, err := List()
	if err != nil {
		t.Fatalf("List() without base dir error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}

	for _, name := range []string{"support", "main"} {
		if err := EnsureDir(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(DeskConfigPath("support"), []byte("log_level = \"debug\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(BaseDir(), "sessions", "Not Valid"), 0o700); err != nil {
		t.Fatal(err)
	}

	got, err = List()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "main" || got[1].Name != "support" {
		t.Fatalf("List() = %+v, want main and support", got)
	}
	if got[0].Configured || !got[1].Configured {
		t.Errorf("configured flags = %v, %v; want false, true", got[0].Configured, got[1].Configured)
	}
	if got[0].Running || got[1].Running {
		t.Error("no session should be running without a socket")
	}
}
