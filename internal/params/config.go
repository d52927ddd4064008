package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk run configuration: parameter seeds plus optimizer and
// batch settings. Missing keys keep their defaults.
type Config struct {
	Parameters Parameters      `yaml:"parameters"`
	Optimizer  OptimizerConfig `yaml:"optimizer"`
	Batch      BatchConfig     `yaml:"batch"`
}

// OptimizerConfig bounds the parameter search.
type OptimizerConfig struct {
	// Step is the spacing between tested thresholds.
	Step          float64 `yaml:"step"`
	MinDiameter   int     `yaml:"min_diameter"`
	MaxIterations int     `yaml:"max_iterations"`
}

// BatchConfig controls the production pass.
type BatchConfig struct {
	Workers     int  `yaml:"workers"`
	SaveRecords bool `yaml:"save_records"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Parameters: Default(),
		Optimizer: OptimizerConfig{
			Step:          10,
			MinDiameter:   2,
			MaxIterations: 100,
		},
		Batch: BatchConfig{
			Workers:     1,
			SaveRecords: true,
		},
	}
}

// Load reads a YAML configuration file on top of DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks parameter seeds and search bounds.
func (c Config) Validate() error {
	if err := c.Parameters.Validate(); err != nil {
		return err
	}
	if c.Optimizer.Step <= 0 {
		return fmt.Errorf("%w: optimizer step must be positive, got %g", ErrInvalid, c.Optimizer.Step)
	}
	if c.Optimizer.MinDiameter < 1 {
		return fmt.Errorf("%w: optimizer min_diameter must be at least 1, got %d", ErrInvalid, c.Optimizer.MinDiameter)
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("%w: optimizer max_iterations must be at least 1, got %d", ErrInvalid, c.Optimizer.MaxIterations)
	}
	return nil
}
