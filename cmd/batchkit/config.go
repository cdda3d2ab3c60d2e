package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the optional TOML configuration file contents. Flags
// override file values.
type Config struct {
	Endpoint      string `toml:"endpoint"`
	LogLevel      string `toml:"log_level"`
	Retries       *int   `toml:"retries"`
	Transactional *bool  `toml:"transactional"`
}

// LoadConfig reads the config file named by the --config flag. A missing
// flag yields an empty config; a named but unreadable file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
