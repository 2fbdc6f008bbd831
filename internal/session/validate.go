package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// A name becomes a directory and a flag value, so it may not lead with a
// dash or underscore.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid session name")

// ValidateName reports whether name can label a session directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: want 1-64 chars of [a-z0-9_-] starting with a letter or digit", ErrInvalidName, name)
	}
	return nil
}

// Info describes a session directory found on disk.
type Info struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Configured bool   `json:"configured"` // desk.toml present
	Running    bool   `json:"running"`    // control socket present
}

// List returns the sessions under BaseDir in name order. Directories whose
// names would not validate are skipped.
func List() ([]Info, error) {
	entries, err := os.ReadDir(filepath.Join(BaseDir(), "sessions"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		out = append(out, Info{
			Name:       e.Name(),
			Path:       Dir(e.Name()),
			Configured: exists(DeskConfigPath(e.Name())),
			Running:    exists(SocketPath(e.Name())),
		})
	}
	return out, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
