package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the palletbridge CLI configuration
type Config struct {
	Node   NodeConfig   `mapstructure:"node"`
	Output OutputConfig `mapstructure:"output"`
}

// NodeConfig represents node connection configuration
type NodeConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Color bool `mapstructure:"color"`
}

// Timeout returns the per-request timeout.
func (n NodeConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Load loads the configuration from palletbridge.yml or palletbridge.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("node.url", "ws://127.0.0.1:9944")
	v.SetDefault("node.timeout_seconds", 30)
	v.SetDefault("output.color", true)

	// Set config name and paths
	v.SetConfigName("palletbridge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/palletbridge")

	// Enable environment variable support (PALLETBRIDGE_NODE_URL etc.)
	v.SetEnvPrefix("palletbridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.Node.URL, "ws://") && !strings.HasPrefix(cfg.Node.URL, "wss://") {
		return fmt.Errorf("node.url must use the ws:// or wss:// scheme, got: %s", cfg.Node.URL)
	}
	if cfg.Node.TimeoutSeconds <= 0 {
		return fmt.Errorf("node.timeout_seconds must be positive, got: %d", cfg.Node.TimeoutSeconds)
	}
	return nil
}
