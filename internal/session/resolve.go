package session

import (
	"os"

	"github.com/matheus3301/wppdesk/internal/config"
)

// DefaultSessionName is used when nothing else names a session.
const DefaultSessionName = "main"

// EnvSession names the session for service managers that cannot pass flags.
const EnvSession = "WPPDESK_SESSION"

// Resolve picks the session name: the --session flag, then $WPPDESK_SESSION,
// then default_session from config.toml, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(EnvSession); env != "" {
		return env
	}
	if cfg, err := config.LoadGlobal(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
