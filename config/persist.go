package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/convergentic/converge/errors"
)

// Save writes the configuration to a TOML file, creating parent directories
// as needed. The optional watcher is told about the write so a concurrent
// ConfigWatcher does not treat it as an external change.
func Save(cfg *Config, configPath string, watcher *Watcher) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create config directory %s", dir)
	}

	if watcher != nil {
		watcher.MarkOwnWrite()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", configPath)
	}
	return nil
}

// WriteDefault materializes a converge.toml populated with defaults.
// Fails if the file already exists; an existing config is never overwritten.
func WriteDefault(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return errors.Newf("config file already exists: %s", configPath)
	}

	v := newViper()
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return errors.Wrap(err, "failed to build default config")
	}
	return Save(&cfg, configPath, nil)
}
