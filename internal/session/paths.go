package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wppdesk.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppdesk")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the control socket path for a session daemon.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// DeviceDBPath returns the whatsmeow device store path.
func DeviceDBPath(name string) string {
	return filepath.Join(Dir(name), "device.db")
}

// DeskDBPath returns the ticketing database path.
func DeskDBPath(name string) string {
	return filepath.Join(Dir(name), "desk.db")
}

// MediaDir returns the default directory media payloads are written to.
func MediaDir(name string) string {
	return filepath.Join(Dir(name), "media")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(Dir(name), "logs", "wppdeskd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// DeskConfigPath returns the per-session config file path.
func DeskConfigPath(name string) string {
	return filepath.Join(Dir(name), "desk.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), filepath.Dir(LogPath(name))} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
