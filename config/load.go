package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/convergentic/converge/errors"
)

// Load reads the converge configuration: defaults, then the nearest
// converge.toml found by walking up from the working directory, then
// CONVERGE_* environment variables. Returns a fresh Config on every call;
// callers own the instance and pass it to constructors explicitly.
func Load() (*Config, error) {
	v := newViper()

	if projectConfig := FindProjectConfig(); projectConfig != "" {
		v.SetConfigFile(projectConfig)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", projectConfig)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}
	return &cfg, nil
}

// newViper builds a Viper instance with defaults and environment binding
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CONVERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// FindProjectConfig searches for converge.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func FindProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			break
		}
		dir = parent
	}

	return ""
}
