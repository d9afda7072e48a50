package command

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigEnv names the config file when -config is not given.
	ConfigEnv = "MONGOCTL_CONFIG"

	envPrefix = "MONGOCTL_"
)

// Config holds the connection settings shared by every command. The
// replica set topology is not configurable.
type Config struct {
	MongoAddr  string        `yaml:"mongoAddr" env:"MONGO_ADDR"`
	Username   string        `yaml:"username" env:"USERNAME"`
	Password   string        `yaml:"password" env:"PASSWORD"`
	AuthSource string        `yaml:"authSource" env:"AUTH_SOURCE"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Consul is used to find the node to talk to when enabled.
	Consul        bool   `yaml:"consul" env:"CONSUL"`
	ConsulServer  string `yaml:"consulServer" env:"CONSUL_SERVER"`
	ConsulService string `yaml:"consulService" env:"CONSUL_SERVICE"`

	LogLevel  string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogPretty bool   `yaml:"logPretty" env:"LOG_PRETTY"`
}

func DefaultConfig() *Config {
	return &Config{
		MongoAddr:     "127.0.0.1:27017",
		Timeout:       5 * time.Second,
		ConsulServer:  "127.0.0.1:8500",
		ConsulService: "mongodb",
		LogLevel:      "info",
	}
}

// LoadConfig layers the config file at path, or the one named by
// MONGOCTL_CONFIG when path is empty, and then MONGOCTL_* environment
// variables over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		cFile, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
		}
		defer cFile.Close()
		if err := yaml.NewDecoder(cFile).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.MongoAddr == "" && !c.Consul {
		return fmt.Errorf("no mongo address configured")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Consul && c.ConsulService == "" {
		return fmt.Errorf("consul enabled without a service name")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}
