// Package config loads lens configuration using Viper.
//
// Configuration comes from defaults, an optional TOML file, and LENS_*
// environment variables, in increasing precedence.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/veldt/lens/docstore"
	"github.com/veldt/lens/errors"
	"github.com/veldt/lens/projection"
)

// Config is the lens runtime configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Documents  DocumentsConfig  `mapstructure:"documents"`
}

// DatabaseConfig locates the local replica database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ProjectionConfig tunes batch projection.
type ProjectionConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// DocumentsConfig tunes document reads.
type DocumentsConfig struct {
	ListLimit int `mapstructure:"list_limit"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "lens.db")
	v.SetDefault("projection.parallelism", projection.DefaultParallelism)
	v.SetDefault("documents.list_limit", docstore.DefaultListLimit)
}

// Load reads configuration from defaults and LENS_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific TOML file path,
// still honoring LENS_* environment variables above it.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("LENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}
