package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Transports the MCP server can listen on.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the global ~/.wamcp/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Transport      string `toml:"transport"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	LogLevel       string `toml:"log_level"`
	MediaDir       string `toml:"media_dir,omitempty"`
	DeviceName     string `toml:"device_name"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Transport:  TransportHTTP,
		Host:       "0.0.0.0",
		Port:       8000,
		LogLevel:   "info",
		DeviceName: "wamcp",
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads path over the defaults. A missing file yields the
// defaults; a malformed one is an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field values that have a closed set of options.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Transport) {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q: want %s or %s", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
