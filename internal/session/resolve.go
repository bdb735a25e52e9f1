package session

import (
	"os"

	"github.com/matheus3301/twin/internal/config"
)

// DefaultSessionName is used when nothing else names a session.
const DefaultSessionName = "main"

// Resolve picks the session to talk to. An explicit name wins, then
// $TWIN_SESSION, then default_session from config.toml. A config that binds
// exactly one bot selects that session; otherwise the result is "main".
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("TWIN_SESSION"); env != "" {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		return DefaultSessionName
	}
	if cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	if len(cfg.Sessions) == 1 {
		for name := range cfg.Sessions {
			return name
		}
	}
	return DefaultSessionName
}
