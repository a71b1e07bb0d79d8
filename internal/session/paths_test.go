package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBaseDirDefault(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	if got, want := Dir("main"), filepath.Join(home, ".wamcp", "sessions", "main"); got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestBaseDirOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(HomeEnv, tmp)
	if got := ConfigPath(); got != filepath.Join(tmp, "config.toml") {
		t.Errorf("ConfigPath() = %q, want under %q", got, tmp)
	}
}

func TestSessionFiles(t *testing.T) {
	tests := []struct {
		name   string
		got    string
		suffix string
	}{
		{"socket", SocketPath("test"), filepath.Join("sessions", "test", "health.sock")},
		{"lock", LockPath("test"), filepath.Join("sessions", "test", "LOCK")},
		{"device db", DeviceDBPath("test"), filepath.Join("sessions", "test", "device.db")},
		{"app db", AppDBPath("test"), filepath.Join("sessions", "test", "wamcp.db")},
		{"media", MediaDir("test"), filepath.Join("sessions", "test", "media")},
		{"log", LogPath("test"), filepath.Join("sessions", "test", "logs", "wamcpd.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasSuffix(tt.got, tt.suffix) {
				t.Errorf("%s path = %q, want suffix %s", tt.name, tt.got, tt.suffix)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	external := filepath.Join(t.TempDir(), "downloads")

	if err := EnsureDir("test", external); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{Dir("test"), LogDir("test"), external} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("%s not created: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s permission = %o, want 0700", dir, perm)
		}
	}
	if _, err := os.Stat(MediaDir("test")); !os.IsNotExist(err) {
		t.Errorf("default media dir created although an external one was given")
	}
}
