package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader loads GlobalConfig from a YAML file, falling back to defaults
// when no path is given.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Configuration file (if a path was given to NewLoader)
	// 2. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*GlobalConfig, error)

	// LoadFromFile loads configuration from a specific file, decoding it
	// over the defaults (fields the file omits keep their default values),
	// without validating it.
	LoadFromFile(path string) (*GlobalConfig, error)
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader for configPath. With an
// empty configPath, Load validates the bare defaults, which configure no
// folders, so Load returns a validation error: the operator must supply a
// file.
func NewLoader(configPath string) Loader {
	return &loader{configPath: configPath}
}

// Load implements Loader.Load.
func (l *loader) Load() (*GlobalConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		fileCfg, err := l.LoadFromFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", l.configPath, err)
		}
		cfg = fileCfg
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Load is a convenience function equivalent to NewLoader(path).Load().
func Load(path string) (*GlobalConfig, error) {
	return NewLoader(path).Load()
}

// LoadFromFile is a convenience function equivalent to
// NewLoader(path).LoadFromFile(path).
func LoadFromFile(path string) (*GlobalConfig, error) {
	return NewLoader(path).LoadFromFile(path)
}

// Save writes cfg to path as YAML, creating parent directories as needed.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *GlobalConfig, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
