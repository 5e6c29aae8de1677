// Package config loads bridge configuration from defaults, an optional YAML
// file and LMSTUDIO_ prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIBase is the LM Studio OpenAI-compatible endpoint on a local install.
const DefaultAPIBase = "http://localhost:1234/v1"

// Config is the root configuration for the bridge process.
type Config struct {
	// APIBase is the base URL of the LM Studio OpenAI-compatible API.
	// Overridable via LMSTUDIO_API_BASE.
	APIBase string        `mapstructure:"api_base"`
	Client  ClientConfig  `mapstructure:"client"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClientConfig bounds the shared HTTP connection pool and request timeouts.
type ClientConfig struct {
	MaxConns        int           `mapstructure:"max_conns"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig controls log verbosity and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
// Pool limits and timeouts mirror what a long-running local inference call needs:
// a short connect timeout and a generous total timeout.
func DefaultConfig() *Config {
	return &Config{
		APIBase: DefaultAPIBase,
		Client: ClientConfig{
			MaxConns:        100,
			MaxConnsPerHost: 20,
			IdleConnTimeout: 30 * time.Second,
			RequestTimeout:  300 * time.Second,
			ConnectTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetDefault("api_base", defaults.APIBase)
	v.SetDefault("client.max_conns", defaults.Client.MaxConns)
	v.SetDefault("client.max_conns_per_host", defaults.Client.MaxConnsPerHost)
	v.SetDefault("client.idle_conn_timeout", defaults.Client.IdleConnTimeout)
	v.SetDefault("client.request_timeout", defaults.Client.RequestTimeout)
	v.SetDefault("client.connect_timeout", defaults.Client.ConnectTimeout)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetConfigName("lmstudio-bridge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LMSTUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("LMSTUDIO_CONFIG_FILE"); configFile != "" {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return config, nil
}
