package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "round_robin", cfg.Scheduler.Algorithm)
	assert.Equal(t, 100, cfg.Scheduler.Quantum)
	assert.Equal(t, 64*1024*1024, cfg.Memory.TotalMemory)
	assert.Equal(t, 4096, cfg.Memory.PageSize)
	assert.Equal(t, 256, cfg.Process.MaxProcesses)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.Memory.PageSize = 0 }},
		{"negative total", func(c *Config) { c.Memory.TotalMemory = -1 }},
		{"total not page aligned", func(c *Config) { c.Memory.TotalMemory = 4097 }},
		{"zero quantum", func(c *Config) { c.Scheduler.Quantum = 0 }},
		{"zero levels", func(c *Config) { c.Scheduler.PriorityLevels = 0 }},
		{"max pid too small", func(c *Config) { c.Process.MaxPID = 2 }},
		{"zero processes", func(c *Config) { c.Process.MaxProcesses = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simos.yaml")
	data := `
scheduler:
  algorithm: mlfq
  quantum: 50
memory:
  total_memory: 33554432
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Explicit values land; everything else keeps its default.
	assert.Equal(t, "mlfq", cfg.Scheduler.Algorithm)
	assert.Equal(t, 50, cfg.Scheduler.Quantum)
	assert.Equal(t, 32*1024*1024, cfg.Memory.TotalMemory)
	assert.Equal(t, 4096, cfg.Memory.PageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: [not a map"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestDecodeOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(map[string]any{
		"scheduler": map[string]any{
			"algorithm": "priority",
			"quantum":   "75", // weakly typed: string to int
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "priority", cfg.Scheduler.Algorithm)
	assert.Equal(t, 75, cfg.Scheduler.Quantum)
	assert.Equal(t, 10, cfg.Scheduler.PriorityLevels, "untouched fields survive")
}
