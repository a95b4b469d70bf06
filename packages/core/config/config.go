package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the contractkit configuration
type Config struct {
	Timeout         int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `yaml:"followRedirects,omitempty" json:"followRedirects,omitempty"`
	MaxRedirects    int               `yaml:"maxRedirects,omitempty" json:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty" json:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // Default headers for all requests
	Variables       map[string]any    `yaml:"variables,omitempty" json:"variables,omitempty"`
	EnvFile         string            `yaml:"envFile,omitempty" json:"envFile,omitempty"`
	SchemaDir       string            `yaml:"schemaDir,omitempty" json:"schemaDir,omitempty"`
	OpenAPI         string            `yaml:"openapi,omitempty" json:"openapi,omitempty"` // OpenAPI document whose component schemas are served
	HistoryPath     string            `yaml:"history,omitempty" json:"history,omitempty"` // SQLite file for run history
	Output          string            `yaml:"output,omitempty" json:"output,omitempty"`   // console, json, junit
	OutputFile      string            `yaml:"outputFile,omitempty" json:"outputFile,omitempty"`
	Parallel        *bool             `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Concurrency     int               `yaml:"concurrency,omitempty" json:"concurrency,omitempty"` // Rows in flight per scenario
	Rate            float64           `yaml:"rate,omitempty" json:"rate,omitempty"`               // Row starts per second, 0 = unpaced
	Bail            *bool             `yaml:"bail,omitempty" json:"bail,omitempty"`
	Verbose         *bool             `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty" json:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetParallel returns the parallel setting, defaulting to false
func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".contractkit.yaml",
	"contractkit.yaml",
	".contractkit.yml",
	".contractkit.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file. JSON is a
// subset of YAML, so one decoder serves both extensions.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapFatal("config", "cannot read "+path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, WrapFatal("config", "cannot parse "+path, err)
	}
	if cfg.Concurrency < 0 {
		return nil, Fatalf("config", "concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if cfg.Rate < 0 {
		return nil, Fatalf("config", "rate must not be negative, got %v", cfg.Rate)
	}

	return cfg, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.SchemaDir != "" {
		result.SchemaDir = other.SchemaDir
	}
	if other.OpenAPI != "" {
		result.OpenAPI = other.OpenAPI
	}
	if other.HistoryPath != "" {
		result.HistoryPath = other.HistoryPath
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Variables) > 0 {
		vars := make(map[string]any, len(c.Variables)+len(other.Variables))
		for k, v := range c.Variables {
			vars[k] = v
		}
		for k, v := range other.Variables {
			vars[k] = v
		}
		result.Variables = vars
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
