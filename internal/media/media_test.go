package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		provided string
		mime     string
		want     string
	}{
		{"report.pdf", "application/pdf", "report.pdf"},
		{"../../etc/passwd", "text/plain", "passwd"},
		{`C:\docs\scan.png`, "image/png", "scan.png"},
		{"", "audio/ogg; codecs=opus", "1700000000123.ogg"},
		{"", "image/jpeg", "1700000000123.jpeg"},
		{"", "garbage", "1700000000123.bin"},
		{"..", "video/mp4", "1700000000123.mp4"},
	}
	for _, tt := range tests {
		if got := FileName(tt.provided, tt.mime, now); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.provided, tt.mime, got, tt.want)
		}
	}
}

func TestKind(t *testing.T) {
	tests := map[string]string{
		"image/png":              "image",
		"audio/ogg; codecs=opus": "audio",
		"application/pdf":        "application",
		"":                       "",
	}
	for mime, want := range tests {
		if got := Kind(mime); got != want {
			t.Errorf("Kind(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestSaveWritesPayload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	s := New(dir)

	res, err := s.Save(Attachment{Data: []byte("png-bytes"), MimeType: "image/png", FileName: "photo.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FileName != "photo.png" || res.MediaType != "image" {
		t.Errorf("result = %+v", res)
	}
	data, err := os.ReadFile(filepath.Join(dir, "photo.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestSaveNeverOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	s := New(dir)
	s.now = func() time.Time { return time.UnixMilli(42) }

	first, err := s.Save(Attachment{Data: []byte("march"), MimeType: "application/pdf", FileName: "invoice.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Save(Attachment{Data: []byte("april"), MimeType: "application/pdf", FileName: "invoice.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	third, err := s.Save(Attachment{Data: []byte("may"), MimeType: "application/pdf", FileName: "invoice.pdf"})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"invoice.pdf":      "march",
		"42-invoice.pdf":   "april",
		"42-2-invoice.pdf": "may",
	}
	for i, res := range []Result{first, second, third} {
		name := []string{"invoice.pdf", "42-invoice.pdf", "42-2-invoice.pdf"}[i]
		if res.FileName != name {
			t.Errorf("save %d name = %q, want %q", i, res.FileName, name)
		}
	}
	for name, body := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != body {
			t.Errorf("%s = %q, want %q", name, data, body)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("dir has %d entries, want 3 (no leftover temp files)", len(entries))
	}
}

func TestSaveWriteFailureKeepsName(t *testing.T) {
	// A regular file where the directory should be makes every write fail.
	blocker := filepath.Join(t.TempDir(), "media")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s := New(blocker)
	s.now = func() time.Time { return time.UnixMilli(42) }

	res, err := s.Save(Attachment{Data: []byte("x"), MimeType: "audio/ogg; codecs=opus"})
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
	if res.FileName != "42.ogg" || werr.FileName != "42.ogg" {
		t.Errorf("file name = %q / %q, want 42.ogg", res.FileName, werr.FileName)
	}
	if res.MediaType != "audio" {
		t.Errorf("media type = %q, want audio", res.MediaType)
	}
}
