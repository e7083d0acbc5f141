// Package config provides layered configuration for the ociregistry CLI.
//
// Values are resolved from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (OCIREGISTRY_ prefix, plus the three
//     REGISTRY_HOST / REGISTRY_USERNAME / REGISTRY_PASSWORD fallbacks)
//  3. Config file (.ociregistry.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the resolved global configuration for one CLI invocation.
type Config struct {
	// Username and Password authenticate against the registry's Basic or
	// Bearer challenge. Either may come from REGISTRY_USERNAME/PASSWORD.
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`

	// Host overrides the registry domain named in a reference string,
	// falling back to REGISTRY_HOST when set.
	Host string `mapstructure:"host" json:"host"`

	// PlainHTTP talks http:// instead of https:// to the registry.
	PlainHTTP bool `mapstructure:"plain-http" json:"plainHttp"`

	// IgnoreCertError skips TLS certificate verification.
	IgnoreCertError bool `mapstructure:"ignore-cert-error" json:"ignoreCertError"`

	LogLevel  string `mapstructure:"log-level" json:"logLevel"`
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// ConfigFile is the resolved path to the config file used, set after
	// Load — not itself read from the config file.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	return nil
}

// Load initializes configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)
	bindLegacyEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", LogLevelInfo)
	v.SetDefault("log-format", LogFormatText)
	v.SetDefault("plain-http", false)
	v.SetDefault("ignore-cert-error", false)
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("OCIREGISTRY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// bindLegacyEnv wires the three bare REGISTRY_* fallbacks named in §6,
// which sit outside the OCIREGISTRY_ prefix convention and so need
// explicit BindEnv calls rather than AutomaticEnv's prefix matching.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("host", "REGISTRY_HOST")
	_ = v.BindEnv("username", "REGISTRY_USERNAME")
	_ = v.BindEnv("password", "REGISTRY_PASSWORD")
}

func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName(".ociregistry")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "ociregistry"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all flags at each
// level, so a subcommand sees its own flags plus every ancestor's
// persistent flags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	return Default()
}
