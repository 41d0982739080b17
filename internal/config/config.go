// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"sage/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Coercion contains type-coercion settings
	Coercion CoercionConfig `json:"coercion"`

	// Output contains output configuration
	Output OutputConfig `json:"output"`

	// Storage contains execution-record storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// CoercionConfig controls how declared field types accept raw values
type CoercionConfig struct {
	// DateLayouts are the accepted layouts for fecha fields, tried in order
	DateLayouts []string `json:"date_layouts"`

	// TrueTokens are accepted booleano true spellings (case-insensitive)
	TrueTokens []string `json:"true_tokens"`

	// FalseTokens are accepted booleano false spellings (case-insensitive)
	FalseTokens []string `json:"false_tokens"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// DefaultFormat is the default output format (cli, json)
	DefaultFormat string `json:"default_format"`

	// ShowEvents includes the full event list in CLI output
	ShowEvents bool `json:"show_events"`
}

// StorageConfig contains execution-record storage settings
type StorageConfig struct {
	// Backend is the storage backend (memory, file)
	Backend string `json:"backend"`

	// Directory is the file backend's base directory
	Directory string `json:"directory"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	storeDir := filepath.Join(homeDir, ".sage", "executions")

	return &Config{
		Version: "1.0",
		Coercion: CoercionConfig{
			DateLayouts: []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"},
			TrueTokens:  []string{"true", "1", "si", "sí", "yes", "verdadero"},
			FalseTokens: []string{"false", "0", "no", "falso"},
		},
		Output: OutputConfig{
			DefaultFormat: "cli",
			ShowEvents:    true,
		},
		Storage: StorageConfig{
			Backend:   "file",
			Directory: storeDir,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
