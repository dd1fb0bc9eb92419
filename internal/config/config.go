// Package config loads nopg settings from defaults, an optional YAML file,
// NOPG_* environment variables and bound command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/nopg/internal/store"
)

const (
	envPrefix      = "NOPG"
	configFileName = "nopg"
	configFileType = "yaml"

	KeyDriver       = "store.driver"
	KeyDSN          = "store.dsn"
	KeyMaxOpenConns = "store.max_open_conns"
	KeyLogLevel     = "log.level"

	DefaultDriver   = "sqlite3"
	DefaultDSN      = "nopg.db"
	DefaultLogLevel = "info"
)

// Config is the resolved configuration.
type Config struct {
	Store store.Config `mapstructure:"store"`
	Log   LogConfig    `mapstructure:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Loader wraps a viper instance with nopg's defaults applied.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with defaults and environment binding set up.
// NOPG_STORE_DSN overrides store.dsn and so on.
func NewLoader() *Loader {
	v := viper.New()
	v.SetDefault(KeyDriver, DefaultDriver)
	v.SetDefault(KeyDSN, DefaultDSN)
	v.SetDefault(KeyMaxOpenConns, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlag binds a flag to a config key. An unset flag does not shadow the
// file or environment value.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: nil flag", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file, if any, and decodes the merged settings.
// An explicit path must exist. Without one, nopg.yaml is looked up in the
// working directory and a missing file is not an error.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName(configFileName)
		l.v.SetConfigType(configFileType)
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Used returns the config file that was read, or "".
func (l *Loader) Used() string {
	return l.v.ConfigFileUsed()
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}
