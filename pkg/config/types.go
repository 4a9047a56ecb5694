package config

import (
	"time"

	"github.com/openfroyo/monitor-provider/pkg/monitorapi"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// Config is the monitor provider configuration file.
type Config struct {
	// API configures the control-plane client.
	API APIConfig `yaml:"api" validate:"required"`

	// Simulator configures the local control-plane simulator.
	Simulator SimulatorConfig `yaml:"simulator"`

	// Policies configures admission policies for Create and Update.
	Policies PolicyConfig `yaml:"policies"`

	// Telemetry configures logging, tracing, metrics, and events.
	Telemetry *telemetry.Config `yaml:"telemetry" validate:"required"`
}

// APIConfig configures the control-plane client.
type APIConfig struct {
	// BaseURL is the control plane root, e.g. https://api.example.com.
	BaseURL string `yaml:"base_url" validate:"required,http_url"`

	// Timeout bounds every control-plane request. Zero disables the limit.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"user_agent"`
}

// SimulatorConfig configures the control-plane simulator.
type SimulatorConfig struct {
	// ListenAddress is the simulator's HTTP listen address.
	ListenAddress string `yaml:"listen_address" validate:"required,hostname_port"`

	// DatabasePath is the SQLite database file, or ":memory:".
	DatabasePath string `yaml:"database_path" validate:"required"`

	// APIKeys are the keys the simulator accepts. Empty accepts any key.
	APIKeys []string `yaml:"api_keys" validate:"dive,required"`
}

// PolicyConfig configures admission policies. The built-in policies are
// always active and only warn.
type PolicyConfig struct {
	// Paths are .rego or .json files, or directories holding them.
	Paths []string `yaml:"paths" validate:"dive,required"`

	// Watch reloads the policies when the files change. Only long-running
	// commands watch.
	Watch bool `yaml:"watch"`
}

// Default values.
const (
	DefaultBaseURL       = "http://localhost:8600"
	DefaultTimeout       = 30 * time.Second
	DefaultListenAddress = "127.0.0.1:8600"
	DefaultDatabasePath  = "monitors.db"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   DefaultTimeout,
			UserAgent: monitorapi.DefaultUserAgent,
		},
		Simulator: SimulatorConfig{
			ListenAddress: DefaultListenAddress,
			DatabasePath:  DefaultDatabasePath,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// ClientConfig returns the control-plane client configuration.
func (c APIConfig) ClientConfig() monitorapi.Config {
	return monitorapi.Config{
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout,
		UserAgent: c.UserAgent,
	}
}
