// Package config holds the configuration snapshot consumed by the kernel
// and its subsystems. Values are loaded once at boot and passed by value;
// there is no global configuration state.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// SchedulerConfig selects and tunes the scheduling algorithm.
type SchedulerConfig struct {
	// Algorithm is one of "round_robin", "priority", "mlfq".
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`
	// Quantum is the time slice in milliseconds.
	Quantum int `yaml:"quantum" mapstructure:"quantum"`
	// PriorityLevels is the number of priority queues (priority and mlfq).
	PriorityLevels int `yaml:"priority_levels" mapstructure:"priority_levels"`
}

// MemoryConfig sizes the simulated physical memory.
type MemoryConfig struct {
	// TotalMemory is the simulated physical memory in bytes.
	TotalMemory int `yaml:"total_memory" mapstructure:"total_memory"`
	// PageSize is the page/frame size in bytes.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// MaxMemoryPerProcess caps per-process allocations in bytes.
	MaxMemoryPerProcess int `yaml:"max_memory_per_process" mapstructure:"max_memory_per_process"`
}

// ProcessConfig bounds the process table.
type ProcessConfig struct {
	// MaxProcesses is the maximum number of live (non-zombie) processes.
	MaxProcesses int `yaml:"max_processes" mapstructure:"max_processes"`
	// MaxPID is the upper bound of the PID space.
	MaxPID int `yaml:"max_pid" mapstructure:"max_pid"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level" mapstructure:"level"`
	// Console enables console output.
	Console bool `yaml:"console" mapstructure:"console"`
}

// Config is the full configuration snapshot.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Memory    MemoryConfig    `yaml:"memory" mapstructure:"memory"`
	Process   ProcessConfig   `yaml:"process" mapstructure:"process"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// Default returns the built-in configuration: 64 MiB of memory in 4 KiB
// pages, a 16 MiB per-process cap, and round-robin scheduling with a 100 ms
// quantum.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			Algorithm:      "round_robin",
			Quantum:        100,
			PriorityLevels: 10,
		},
		Memory: MemoryConfig{
			TotalMemory:         64 * 1024 * 1024,
			PageSize:            4096,
			MaxMemoryPerProcess: 16 * 1024 * 1024,
		},
		Process: ProcessConfig{
			MaxProcesses: 256,
			MaxPID:       32768,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode applies untyped overrides (section name to key/value map) on top of
// an existing configuration. The embedding shell passes overrides this way.
func (c *Config) Decode(overrides map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(overrides); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return c.Validate()
}

// Validate rejects configurations the subsystems cannot operate with.
func (c Config) Validate() error {
	if c.Memory.PageSize <= 0 || c.Memory.TotalMemory <= 0 {
		return fmt.Errorf("%w: memory sizes must be positive", ErrConfigInvalid)
	}
	if c.Memory.TotalMemory%c.Memory.PageSize != 0 {
		return fmt.Errorf("%w: total_memory must be a multiple of page_size", ErrConfigInvalid)
	}
	if c.Scheduler.Quantum <= 0 {
		return fmt.Errorf("%w: quantum must be positive", ErrConfigInvalid)
	}
	if c.Scheduler.PriorityLevels <= 0 {
		return fmt.Errorf("%w: priority_levels must be positive", ErrConfigInvalid)
	}
	if c.Process.MaxProcesses <= 0 || c.Process.MaxPID <= 2 {
		return fmt.Errorf("%w: process limits out of range", ErrConfigInvalid)
	}
	return nil
}
