// Package config handles configuration for flowdriver.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File names looked up by LoadFromDir, in order.
var configFiles = []string{"flowdriver.yaml", "flowdriver.yml"}

// Config represents the suite configuration (flowdriver.yaml).
type Config struct {
	// Automation server
	AppiumURL    string                 `yaml:"appiumUrl"`
	Capabilities map[string]interface{} `yaml:"capabilities"`
	AppID        string                 `yaml:"appId"` // Default for activateApp steps

	// Waiting
	DefaultTimeout int `yaml:"defaultTimeout"` // ms
	PollInterval   int `yaml:"pollInterval"`   // ms

	// Scenario selection
	Scenarios   []string `yaml:"scenarios"`   // Glob patterns, relative to the config file
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Execution settings
	Env      map[string]string `yaml:"env"`     // Fields available to every scenario
	DataDir  string            `yaml:"dataDir"` // Base for relative data file paths
	Parallel int               `yaml:"parallel"`

	// Output
	Output    string `yaml:"output"`    // Report directory
	HistoryDB string `yaml:"historyDb"` // SQLite history file
	LogLevel  string `yaml:"logLevel"`

	dir string
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromDir looks for flowdriver.yaml or flowdriver.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range configFiles {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return empty config
	return &Config{dir: dir}, nil
}

// LoadEnv loads a .env file from dir into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DefaultTimeout < 0 {
		return errors.New("defaultTimeout must not be negative")
	}
	if c.PollInterval < 0 {
		return errors.New("pollInterval must not be negative")
	}
	if c.Parallel < 0 {
		return errors.New("parallel must not be negative")
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
	}
	return nil
}

// Dir returns the directory the config was loaded from.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

// Resolve returns path relative to the config directory unless it is absolute.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// WaitPolicy returns the configured wait policy, filling defaults.
func (c *Config) WaitPolicy() core.WaitPolicy {
	return core.WaitPolicy{
		Timeout:  time.Duration(c.DefaultTimeout) * time.Millisecond,
		Interval: time.Duration(c.PollInterval) * time.Millisecond,
	}.Normalize()
}

// ScenarioFiles expands the Scenarios globs into a sorted, de-duplicated list.
// A pattern that matches nothing is an error.
func (c *Config) ScenarioFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range c.Scenarios {
		matches, err := filepath.Glob(c.Resolve(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matched no files", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
