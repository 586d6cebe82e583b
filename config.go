package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// defaultFetchLimit bounds remote dereferences per inbound activity.
const defaultFetchLimit = 25

// ServerConfig defines config options for running the server.
type ServerConfig struct {
	Scheme     string
	Hostname   string
	PublicKey  string `toml:"public_key"`
	PrivateKey string `toml:"private_key"`
}

// FederationConfig defines which instances we federate with and how
// much remote fetching one inbound activity may cause.
type FederationConfig struct {
	AllowedInstances []string `toml:"allowed_instances"`
	BlockedInstances []string `toml:"blocked_instances"`
	FetchLimit       int      `toml:"fetch_limit"`
}

// Config is the config object.
type Config struct {
	Server     ServerConfig
	Federation FederationConfig
}

// LoadConfig loads a config at configPath.
func LoadConfig(configPath string) (*Config, error) {
	var conf Config
	md, err := toml.DecodeFile(configPath, &conf)
	if err != nil {
		return nil, err
	}

	undecoded := md.Undecoded()
	if len(undecoded) != 0 {
		return nil, fmt.Errorf("these config fields are unused: %q", undecoded)
	}

	err = ValidateConfig(conf)
	if err != nil {
		return nil, err
	}

	return &conf, nil
}

// ValidateConfig validates a Config.
func ValidateConfig(conf Config) error {
	if conf.Server.Hostname == "" {
		return fmt.Errorf("no hostname given")
	}

	if conf.Server.PublicKey == "" {
		return fmt.Errorf("no public key path given")
	}

	if conf.Server.PrivateKey == "" {
		return fmt.Errorf("no private key path given")
	}

	if conf.Server.Scheme == "" {
		return fmt.Errorf("no scheme given")
	}

	if conf.Federation.FetchLimit < 0 {
		return fmt.Errorf("fetch limit cannot be negative")
	}

	return nil
}

// FetchLimit returns the configured per-activity fetch budget, falling
// back to the default when unset.
func (c *Config) FetchLimit() int {
	if c.Federation.FetchLimit == 0 {
		return defaultFetchLimit
	}
	return c.Federation.FetchLimit
}
