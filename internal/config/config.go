package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the demo runner configuration
type Config struct {
	Debug        bool               `yaml:"debug"`   // Enable debug logging
	Workers      int                `yaml:"workers"` // Worker goroutines of the pool scenario
	Generator    GeneratorConfig    `yaml:"generator"`
	Events       EventsConfig       `yaml:"events"`
	Coordination CoordinationConfig `yaml:"coordination"`
	Callback     CallbackConfig     `yaml:"callback"`
	Lock         LockConfig         `yaml:"lock"`
}

// GeneratorConfig configures the Fibonacci generator scenario
type GeneratorConfig struct {
	Count int `yaml:"count"` // Values to pull
}

// EventsConfig configures the producer/consumer event scenario
type EventsConfig struct {
	Items        int           `yaml:"items"`         // Events the producer pushes
	Interval     time.Duration `yaml:"interval"`      // Spacing between pushes
	PollInterval time.Duration `yaml:"poll_interval"` // 0 waits on the queue instead of polling
}

// CoordinationConfig configures the detached task scenario
type CoordinationConfig struct {
	Unit time.Duration `yaml:"unit"` // Time per distance unit
}

// CallbackConfig configures the callback bridge scenario
type CallbackConfig struct {
	Latency time.Duration `yaml:"latency"` // Delay before the API calls back
	Value   int           `yaml:"value"`   // Extra value passed through the API
}

// LockConfig configures the lock-guarded task scenario
type LockConfig struct {
	Tasks int           `yaml:"tasks"` // Concurrently launched tasks
	Hold  time.Duration `yaml:"hold"`  // Time each task spends in its body
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:   4,
		Generator: GeneratorConfig{Count: 10},
		Events: EventsConfig{
			Items:        5,
			Interval:     500 * time.Millisecond,
			PollInterval: 100 * time.Millisecond,
		},
		Coordination: CoordinationConfig{Unit: 500 * time.Millisecond},
		Callback: CallbackConfig{
			Latency: 200 * time.Millisecond,
			Value:   43,
		},
		Lock: LockConfig{
			Tasks: 2,
			Hold:  time.Second,
		},
	}
}

// Load loads configuration from the specified path, falling back to
// defaults when the file does not exist. Environment overrides are
// applied last.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".config", "cotask", "config.yaml")
	}

	configPath = expandPath(configPath)

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from COTASK_* environment variables
func (c *Config) applyEnv() error {
	if val := os.Getenv("COTASK_WORKERS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid COTASK_WORKERS %q: %w", val, err)
		}
		c.Workers = n
	}
	if val := os.Getenv("COTASK_DEBUG"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid COTASK_DEBUG %q: %w", val, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks that the configuration can drive the scenarios
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Generator.Count < 0 {
		errs = append(errs, fmt.Errorf("generator.count must not be negative, got %d", c.Generator.Count))
	}
	if c.Events.Items < 0 {
		errs = append(errs, fmt.Errorf("events.items must not be negative, got %d", c.Events.Items))
	}
	if c.Events.Interval < 0 || c.Events.PollInterval < 0 {
		errs = append(errs, errors.New("events intervals must not be negative"))
	}
	if c.Lock.Tasks < 1 {
		errs = append(errs, fmt.Errorf("lock.tasks must be positive, got %d", c.Lock.Tasks))
	}
	return errors.Join(errs...)
}

// expandPath expands ~ to home directory in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return homeDir
		}
		return filepath.Join(homeDir, path[1:])
	}

	return path
}
