package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory, mainly for tests and containers.
const HomeEnv = "WAMCP_HOME"

// BaseDir returns $WAMCP_HOME, or ~/.wamcp.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wamcp")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS path of the session's health endpoint.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "health.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DeviceDBPath returns the whatsmeow device store path.
func DeviceDBPath(name string) string {
	return filepath.Join(Dir(name), "device.db")
}

// AppDBPath returns the app-owned message store path.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "wamcp.db")
}

// MediaDir returns the default download directory for a session.
func MediaDir(name string) string {
	return filepath.Join(Dir(name), "media")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wamcpd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with owner-only permissions.
// mediaDir may point outside the session; empty means the default.
func EnsureDir(name, mediaDir string) error {
	if mediaDir == "" {
		mediaDir = MediaDir(name)
	}
	for _, d := range []string{Dir(name), LogDir(name), mediaDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
