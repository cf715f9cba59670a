// Package config loads the server configuration from an optional YAML
// file. Missing file means defaults; command-line flags override fields
// at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server looks for configuration when no -config
// flag is given.
const DefaultPath = "rewards.yaml"

// Config represents the server configuration file.
type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// CORSOrigins lists the origins allowed by the HTTP layer. Empty
	// means localhost defaults.
	CORSOrigins []string `yaml:"cors_origins"`

	// DefaultDealerRewardLimit is applied to dealers registered without
	// an explicit per-invoice reward cap. "0" means uncapped.
	DefaultDealerRewardLimit string `yaml:"default_dealer_reward_limit"`
}

// Load reads the config from path. Returns defaults if the file doesn't
// exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Port <= 0 {
		cfg.Port = defaultConfig().Port
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultConfig().DBPath
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Port:                     8080,
		DBPath:                   "rewards.db",
		DefaultDealerRewardLimit: "0",
	}
}
