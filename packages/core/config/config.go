package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the hitsuite configuration
type Config struct {
	Order      string         `json:"order,omitempty" yaml:"order,omitempty"` // random, declared, alpha
	Seed       uint64         `json:"seed,omitempty" yaml:"seed,omitempty"`
	Timeout    int            `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds, per spec
	Retries    int            `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay int            `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"` // milliseconds
	Rate       float64        `json:"rate,omitempty" yaml:"rate,omitempty"`             // spec starts per second
	Bail       *bool          `json:"bail,omitempty" yaml:"bail,omitempty"`
	Verbose    *bool          `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor    *bool          `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Reporters  []string       `json:"reporters,omitempty" yaml:"reporters,omitempty"`
	OutputDir  string         `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	EnvFile    string         `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Tags       []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Variables  map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	Log        *LogConfig     `json:"log,omitempty" yaml:"log,omitempty"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// BoolPtr returns a pointer to b.
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

// ConfigFilenames contains the possible config file names, in lookup order.
var ConfigFilenames = []string{
	".hitsuite.json",
	"hitsuite.json",
	".hitsuite.yaml",
	".hitsuite.yml",
	"hitsuite.yaml",
	"hitsuite.yml",
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
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the values that cannot be fixed up by defaults.
func (c *Config) Validate() error {
	switch c.Order {
	case "", OrderRandom, OrderDeclared, OrderAlpha:
	default:
		return fmt.Errorf("unknown order %q (use %s, %s or %s)", c.Order, OrderRandom, OrderDeclared, OrderAlpha)
	}
	if c.Timeout < 0 || c.Retries < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("timeout, retries and retryDelay must not be negative")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Order != "" {
		result.Order = other.Order
	}
	if other.Seed != 0 {
		result.Seed = other.Seed
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}
	if len(other.Tags) > 0 {
		result.Tags = other.Tags
	}
	if len(other.Variables) > 0 {
		merged := make(map[string]any, len(c.Variables)+len(other.Variables))
		maps.Copy(merged, c.Variables)
		maps.Copy(merged, other.Variables)
		result.Variables = merged
	}
	if other.Log != nil {
		log := LogConfig{}
		if c.Log != nil {
			log = *c.Log
		}
		if other.Log.Level != "" {
			log.Level = other.Log.Level
		}
		if other.Log.Format != "" {
			log.Format = other.Log.Format
		}
		if other.Log.File != "" {
			log.File = other.Log.File
		}
		result.Log = &log
	}

	return &result
}

// SaveConfig saves the configuration to a file. The format follows the file
// extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
