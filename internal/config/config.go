// Package config loads fsbox settings with viper and assembles the
// registry, index and store they describe.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nuln/fsbox"
)

// Index types.
const (
	IndexMemory = "memory"
	IndexSQLite = "sqlite"
	IndexBadger = "badger"
)

// envKeyReplacer maps nested keys onto env names: log.level → FSBOX_LOG_LEVEL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds all configuration for fsbox
type Config struct {
	DefaultScheme        string         `mapstructure:"default_scheme"`
	DeleteManagedObjects bool           `mapstructure:"delete_managed_objects"`
	StateFile            string         `mapstructure:"state_file"`
	Log                  LogConfig      `mapstructure:"log"`
	Index                IndexConfig    `mapstructure:"index"`
	Mirror               MirrorConfig   `mapstructure:"mirror"`
	Server               ServerConfig   `mapstructure:"server"`
	Schemes              []SchemeConfig `mapstructure:"schemes"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// IndexConfig selects where managed records live.
type IndexConfig struct {
	Type string `mapstructure:"type"` // memory, sqlite, badger
	Path string `mapstructure:"path"`
}

// MirrorConfig tunes ReadAndMirror.
type MirrorConfig struct {
	UnsafePattern string `mapstructure:"unsafe_pattern"`
}

// ServerConfig configures "fsbox serve".
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SchemeConfig binds one scheme to a storage driver.
type SchemeConfig struct {
	Scheme      string         `mapstructure:"scheme"`
	Driver      string         `mapstructure:"driver"`
	BasePath    string         `mapstructure:"base_path"`
	BaseURL     string         `mapstructure:"base_url"`
	PublicLinks bool           `mapstructure:"public_links"`
	LinkExpiry  time.Duration  `mapstructure:"link_expiry"`
	Options     map[string]any `mapstructure:"options"`
}

// EngineConfig returns the driver configuration for fsbox.Open.
func (s SchemeConfig) EngineConfig() *fsbox.Config {
	return &fsbox.Config{Type: s.Driver, BasePath: s.BasePath, Options: s.Options}
}

// Servable reports whether the scheme is exposed over HTTP.
func (s SchemeConfig) Servable() bool {
	return s.BaseURL != ""
}

// DefaultSchemes is the scheme set used when the configuration names none:
// a public directory served over HTTP, a private directory and a
// process-lifetime session scheme.
func DefaultSchemes() []map[string]any {
	return []map[string]any{
		{
			"scheme":    "public",
			"driver":    "local",
			"base_path": "./data/public",
			"base_url":  "http://localhost:8080/files/public",
		},
		{
			"scheme":    "private",
			"driver":    "local",
			"base_path": "./data/private",
		},
		{
			"scheme": "session",
			"driver": "memory",
		},
	}
}

// Load loads configuration from defaults, the config file, FSBOX_*
// environment variables and the command's flags, in increasing priority.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified, else look for fsbox.yaml
	configFile, _ := cmd.Flags().GetString("config")
	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	// Read from environment variables
	v.SetEnvPrefix("FSBOX")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	return decode(v)
}

// LoadFile loads configuration from path without any flag bindings.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}
	v.SetEnvPrefix("FSBOX")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	return decode(v)
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("fsbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_scheme", fsbox.DefaultScheme)
	v.SetDefault("delete_managed_objects", true)
	v.SetDefault("state_file", "./data/state.yaml")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("index.type", IndexSQLite)
	v.SetDefault("index.path", "./data/records.db")

	v.SetDefault("mirror.unsafe_pattern", fsbox.DefaultUnsafePattern)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("schemes", DefaultSchemes())
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"log-level":      "log.level",
		"log-format":     "log.format",
		"index-type":     "index.type",
		"index-path":     "index.path",
		"default-scheme": "default_scheme",
		"state-file":     "state_file",
		"addr":           "server.addr",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	switch cfg.Index.Type {
	case IndexMemory:
	case IndexSQLite, IndexBadger:
		if cfg.Index.Path == "" {
			return fmt.Errorf("index.path is required for index type %q", cfg.Index.Type)
		}
	default:
		return fmt.Errorf("unknown index type %q", cfg.Index.Type)
	}

	if len(cfg.Schemes) == 0 {
		return errors.New("at least one scheme must be configured")
	}

	seen := make(map[string]bool, len(cfg.Schemes))
	for i, s := range cfg.Schemes {
		if !fsbox.ValidScheme(s.Scheme) {
			return fmt.Errorf("schemes[%d]: invalid scheme %q", i, s.Scheme)
		}
		if seen[s.Scheme] {
			return fmt.Errorf("schemes[%d]: %w: %q", i, fsbox.ErrDuplicateScheme, s.Scheme)
		}
		seen[s.Scheme] = true
		if s.Driver == "" {
			return fmt.Errorf("schemes[%d]: driver is required", i)
		}
	}

	if !seen[cfg.DefaultScheme] {
		return fmt.Errorf("default_scheme %q is not configured", cfg.DefaultScheme)
	}
	return nil
}
