package main

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wamcp/internal/config"
	"github.com/matheus3301/wamcp/internal/daemon"
	"github.com/matheus3301/wamcp/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// options is the process configuration after merging flags, environment,
// config.toml and defaults, in that order of precedence.
type options struct {
	Session    string
	Transport  string
	Host       string
	Port       int
	LogLevel   string
	MediaDir   string
	DeviceName string
}

// envNames maps option keys to the environment variables that set them.
var envNames = map[string]string{
	"session":     "WAMCP_SESSION",
	"transport":   "MCP_TRANSPORT",
	"host":        "HOST",
	"port":        "PORT",
	"log_level":   "WAMCP_LOG_LEVEL",
	"media_dir":   "WAMCP_MEDIA_DIR",
	"device_name": "WAMCP_DEVICE_NAME",
}

func addSessionFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file path (default $WAMCP_HOME/config.toml)")
	fs.String("session", "", "session name (overrides config default)")
	fs.String("transport", "", "MCP transport: stdio or http")
	fs.String("host", "", "HTTP listen host")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("media-dir", "", "directory for downloaded media")
	fs.String("device-name", "", "name shown in the phone's linked devices")
}

func loadOptions(cmd *cobra.Command) (options, error) {
	flags := cmd.Flags()

	cfgPath, _ := flags.GetString("config")
	if cfgPath == "" {
		cfgPath = session.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return options{}, err
	}

	v := viper.New()
	v.SetDefault("session", cfg.DefaultSession)
	v.SetDefault("transport", cfg.Transport)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("media_dir", cfg.MediaDir)
	v.SetDefault("device_name", cfg.DeviceName)
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return options{}, err
		}
		if err := v.BindPFlag(key, flags.Lookup(strings.ReplaceAll(key, "_", "-"))); err != nil {
			return options{}, err
		}
	}

	o := options{
		Session:    strings.TrimSpace(v.GetString("session")),
		Transport:  strings.ToLower(strings.TrimSpace(v.GetString("transport"))),
		Host:       v.GetString("host"),
		Port:       v.GetInt("port"),
		LogLevel:   v.GetString("log_level"),
		MediaDir:   v.GetString("media_dir"),
		DeviceName: v.GetString("device_name"),
	}
	if o.Session == "" {
		o.Session = session.DefaultName
	}
	if err := session.ValidateName(o.Session); err != nil {
		return options{}, err
	}
	check := config.Config{Transport: o.Transport, Port: o.Port}
	if err := check.Validate(); err != nil {
		return options{}, fmt.Errorf("invalid options: %w", err)
	}
	return o, nil
}

func (o options) params() daemon.Params {
	return daemon.Params{
		SessionName: o.Session,
		Version:     version,
		Transport:   o.Transport,
		Host:        o.Host,
		Port:        o.Port,
		LogLevel:    o.LogLevel,
		MediaDir:    o.MediaDir,
		DeviceName:  o.DeviceName,
	}
}
