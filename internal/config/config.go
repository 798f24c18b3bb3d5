package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Provider choice is a
// deployment-time decision: a configured self-hosted base URL takes
// precedence over a hosted API key.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	Hosted     HostedConfig     `yaml:"hosted"`
	SelfHosted SelfHostedConfig `yaml:"selfHosted"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// GatewayConfig holds the HTTP server settings.
type GatewayConfig struct {
	Port      int    `yaml:"port"`
	Bind      string `yaml:"bind"`
	RateLimit int    `yaml:"rateLimit"` // max chat requests per minute per client (0 = disabled)
}

// HostedConfig configures the hosted-cloud model backend (Gemini).
type HostedConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// SelfHostedConfig configures an operator-run, Ollama-compatible backend.
// GatewayClientID/Secret are optional access-gateway headers for endpoints
// behind an auth proxy.
type SelfHostedConfig struct {
	BaseURL             string `yaml:"baseUrl"`
	Model               string `yaml:"model"`
	GatewayClientID     string `yaml:"gatewayClientId"`
	GatewayClientSecret string `yaml:"gatewayClientSecret"`
}

// StorageConfig holds the usage log database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:      18790,
			Bind:      "localhost",
			RateLimit: 20,
		},
		Hosted: HostedConfig{
			Model: "gemini-2.0-flash",
		},
		SelfHosted: SelfHostedConfig{
			Model: "llama3.1",
		},
		Storage: StorageConfig{
			Path: DefaultDBPath(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lifedash")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDBPath returns the default usage log database location.
func DefaultDBPath() string {
	return filepath.Join(configDir(), "usage.db")
}

// Load reads the config file at path (or the default location when path is
// empty), falling back to defaults when the file does not exist, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables. The environment
// is the canonical configuration surface in deployed environments.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Hosted.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Hosted.Model = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.SelfHosted.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.SelfHosted.Model = v
	}
	if v := os.Getenv("OLLAMA_GATEWAY_CLIENT_ID"); v != "" {
		c.SelfHosted.GatewayClientID = v
	}
	if v := os.Getenv("OLLAMA_GATEWAY_CLIENT_SECRET"); v != "" {
		c.SelfHosted.GatewayClientSecret = v
	}
	if v := os.Getenv("LIFEDASH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("LIFEDASH_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LIFEDASH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// ValidationResult holds the result of config validation
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// Validate checks the configuration for required fields and common issues
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if c.SelfHosted.BaseURL == "" && c.Hosted.APIKey == "" {
		result.Errors = append(result.Errors,
			"no model provider configured: set selfHosted.baseUrl (OLLAMA_BASE_URL) or hosted.apiKey (GEMINI_API_KEY)")
	}

	if c.SelfHosted.BaseURL != "" && c.Hosted.APIKey != "" {
		result.Warnings = append(result.Warnings,
			"both providers configured: the self-hosted base URL takes precedence")
	}

	if c.SelfHosted.GatewayClientID != "" && c.SelfHosted.GatewayClientSecret == "" {
		result.Warnings = append(result.Warnings,
			"gatewayClientId set without gatewayClientSecret: access-gateway auth will likely fail")
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("invalid gateway port: %d", c.Gateway.Port))
	}

	if c.Gateway.RateLimit > 100 {
		result.Warnings = append(result.Warnings,
			"rate limit > 100 req/min - consider a lower limit")
	}

	return result
}
