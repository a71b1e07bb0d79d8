package session

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matheus3301/wamcp/internal/config"
)

// DefaultName is used when neither the caller nor config.toml names a session.
const DefaultName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a directory under sessions/.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve picks the active session: override (the --session flag or
// WAMCP_SESSION), then config.toml's default_session, then DefaultName.
// The result is validated.
func Resolve(override string) (string, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		if cfg, err := config.Load(ConfigPath()); err == nil {
			name = strings.TrimSpace(cfg.DefaultSession)
		}
	}
	if name == "" {
		name = DefaultName
	}
	return name, ValidateName(name)
}
