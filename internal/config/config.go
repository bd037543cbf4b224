// Package config loads fintrack settings from a config file, a .env file and
// FINTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fintrack/fintrack/internal/logging"
	"github.com/fintrack/fintrack/internal/netcheck"
	"github.com/fintrack/fintrack/internal/transport"
)

// EnvPrefix is prepended to every environment override, e.g.
// FINTRACK_API_ENDPOINT for api.endpoint.
const EnvPrefix = "FINTRACK"

// FileName is the config file name searched for without extension.
const FileName = "fintrack"

// Config is the full application configuration.
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Store        StoreConfig        `mapstructure:"store"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Daemon       DaemonConfig       `mapstructure:"daemon"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard"`
	Log          LogConfig          `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type APIConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ConnectivityConfig struct {
	Mode         string        `mapstructure:"mode"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type DaemonConfig struct {
	Inbox           string `mapstructure:"inbox"`
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Dir returns the per-user directory holding the config file and data.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fintrack")
	}
	return ".fintrack"
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("api.endpoint", "")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.timeout", transport.DefaultTimeout)
	v.SetDefault("store.path", filepath.Join(dir, "fintrack.db"))
	v.SetDefault("connectivity.mode", string(netcheck.ModeProbe))
	v.SetDefault("connectivity.probe_timeout", netcheck.DefaultProbeTimeout)
	v.SetDefault("daemon.inbox", filepath.Join(dir, "inbox"))
	v.SetDefault("daemon.refresh_schedule", "@every 5m")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Load reads configuration. An explicit path must exist; without one the
// working directory and Dir are searched and a missing file is not an error.
// Values from .env are exported before environment overrides are applied.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have a fixed set of choices. A missing
// endpoint is allowed so offline-only commands keep working.
func (c *Config) Validate() error {
	switch netcheck.Mode(strings.ToLower(c.Connectivity.Mode)) {
	case netcheck.ModeProbe, netcheck.ModeOnline, netcheck.ModeOffline:
	default:
		return fmt.Errorf("connectivity.mode must be probe, online or offline, got %q", c.Connectivity.Mode)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Transport returns the transport client settings.
func (c *Config) Transport() transport.Config {
	return transport.Config{
		Endpoint:  c.API.Endpoint,
		AuthToken: c.API.AuthToken,
		Timeout:   c.API.Timeout,
	}
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// Checker builds the connectivity checker for the configured mode.
func (c *Config) Checker() (netcheck.Checker, error) {
	return netcheck.FromMode(netcheck.Mode(c.Connectivity.Mode), c.API.Endpoint, c.Connectivity.ProbeTimeout)
}

// fileLayout is the on-disk shape written by WriteFile. Durations are
// strings so the file stays readable.
type fileLayout struct {
	API struct {
		Endpoint  string `toml:"endpoint"`
		AuthToken string `toml:"auth_token"`
		Timeout   string `toml:"timeout"`
	} `toml:"api"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Connectivity struct {
		Mode         string `toml:"mode"`
		ProbeTimeout string `toml:"probe_timeout"`
	} `toml:"connectivity"`
	Daemon struct {
		Inbox           string `toml:"inbox"`
		RefreshSchedule string `toml:"refresh_schedule"`
	} `toml:"daemon"`
	Dashboard struct {
		Port int `toml:"port"`
	} `toml:"dashboard"`
	Log struct {
		Level      string `toml:"level"`
		Format     string `toml:"format"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
	} `toml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// WriteFile writes c as TOML to path. An existing file is only replaced
// when force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var out fileLayout
	out.API.Endpoint = c.API.Endpoint
	out.API.AuthToken = c.API.AuthToken
	out.API.Timeout = c.API.Timeout.String()
	out.Store.Path = c.Store.Path
	out.Connectivity.Mode = c.Connectivity.Mode
	out.Connectivity.ProbeTimeout = c.Connectivity.ProbeTimeout.String()
	out.Daemon.Inbox = c.Daemon.Inbox
	out.Daemon.RefreshSchedule = c.Daemon.RefreshSchedule
	out.Dashboard.Port = c.Dashboard.Port
	out.Log.Level = c.Log.Level
	out.Log.Format = c.Log.Format
	out.Log.File = c.Log.File
	out.Log.MaxSizeMB = c.Log.MaxSizeMB
	out.Log.MaxBackups = c.Log.MaxBackups
	out.Log.MaxAgeDays = c.Log.MaxAgeDays

	// The file may hold the auth token.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
