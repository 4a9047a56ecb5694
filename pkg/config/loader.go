package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// Environment variables that override the configuration file.
const (
	EnvAPIURL     = "MONITOR_API_URL"
	EnvAPITimeout = "MONITOR_API_TIMEOUT"
	EnvLogLevel   = "LOG_LEVEL"

	// EnvEnvironment selects the telemetry preset the file is applied on top of.
	EnvEnvironment = "MONITOR_ENVIRONMENT"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration file at path, applies environment overrides
// from the process environment, and validates the result. An empty path
// loads the defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := DefaultConfig()
	if lookup != nil {
		if env, ok := lookup(EnvEnvironment); ok {
			preset, err := telemetry.ConfigForEnvironment(env)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", EnvEnvironment, err)
			}
			cfg.Telemetry = preset
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides configuration values from the environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvAPIURL); ok && strings.TrimSpace(v) != "" {
		c.API.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAPITimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAPITimeout, err)
		}
		c.API.Timeout = d
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		if c.Telemetry != nil {
			c.Telemetry.Logging.Level = strings.ToLower(strings.TrimSpace(v))
		}
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}
