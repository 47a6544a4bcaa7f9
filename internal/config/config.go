// Package config loads planner settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/planilp/internal/encode"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

// Config holds all planilp configuration.
type Config struct {
	Solver    SolverConfig    `yaml:"solver"`
	Grounding GroundingConfig `yaml:"grounding"`
	Encoding  EncodingConfig  `yaml:"encoding"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SolverConfig selects and bounds the 0-1 backend.
type SolverConfig struct {
	Backend   string `yaml:"backend"` // gophersat, reference
	Timeout   string `yaml:"timeout"`
	NodeLimit int    `yaml:"node_limit"` // reference backend only; 0 means unlimited
}

// GroundingConfig configures the grounder.
type GroundingConfig struct {
	PruneStatic bool `yaml:"prune_static"`
	Workers     int  `yaml:"workers"` // 0 means GOMAXPROCS
	MaxFacts    int  `yaml:"max_facts"`
	MaxActions  int  `yaml:"max_actions"`
}

// EncodingConfig configures the time-expansion encoder.
type EncodingConfig struct {
	Semantics    string `yaml:"semantics"` // serial, parallel
	Objective    string `yaml:"objective"` // auto, none, minimize
	MaxVariables int    `yaml:"max_variables"`
}

// SearchConfig bounds the horizon search.
type SearchConfig struct {
	MinHorizon int `yaml:"min_horizon"`
	MaxHorizon int `yaml:"max_horizon"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Backend: solver.BackendGophersat,
			Timeout: "60s",
		},
		Grounding: GroundingConfig{
			PruneStatic: true,
			MaxFacts:    1 << 20,
			MaxActions:  1 << 20,
		},
		Encoding: EncodingConfig{
			Semantics:    "serial",
			Objective:    "auto",
			MaxVariables: 1 << 24,
		},
		Search: SearchConfig{
			MinHorizon: 0,
			MaxHorizon: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PLANILP_SOLVER"); v != "" {
		c.Solver.Backend = v
	}
	if v := os.Getenv("PLANILP_TIMEOUT"); v != "" {
		c.Solver.Timeout = v
	}
	if v := os.Getenv("PLANILP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PLANILP_MAX_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLANILP_MAX_HORIZON: %w", err)
		}
		c.Search.MaxHorizon = n
	}
	return nil
}

// GetSolverTimeout returns the solver timeout as a duration. An empty or
// malformed value falls back to 60s; "0" disables the timeout.
func (c *Config) GetSolverTimeout() time.Duration {
	d, err := time.ParseDuration(c.Solver.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, b := range solver.Backends() {
		if c.Solver.Backend == b {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid solver backend: %s (valid: %v)", c.Solver.Backend, solver.Backends())
	}
	if c.Solver.Timeout != "" {
		if d, err := time.ParseDuration(c.Solver.Timeout); err != nil || d < 0 {
			return fmt.Errorf("invalid solver timeout: %q", c.Solver.Timeout)
		}
	}
	if c.Solver.NodeLimit < 0 {
		return fmt.Errorf("negative node limit: %d", c.Solver.NodeLimit)
	}
	if c.Grounding.Workers < 0 || c.Grounding.MaxFacts < 0 || c.Grounding.MaxActions < 0 {
		return fmt.Errorf("grounding limits must be non-negative")
	}
	if _, err := encode.ParseSemantics(c.Encoding.Semantics); err != nil {
		return err
	}
	if _, err := encode.ParseObjective(c.Encoding.Objective); err != nil {
		return err
	}
	if c.Encoding.MaxVariables < 0 {
		return fmt.Errorf("negative variable limit: %d", c.Encoding.MaxVariables)
	}
	if c.Search.MinHorizon < 0 || c.Search.MaxHorizon < c.Search.MinHorizon {
		return fmt.Errorf("invalid horizon range [%d, %d]", c.Search.MinHorizon, c.Search.MaxHorizon)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// GroundOptions returns grounder options. Call Validate first.
func (c *Config) GroundOptions(log *zap.Logger) ground.Options {
	return ground.Options{
		Workers:     c.Grounding.Workers,
		PruneStatic: c.Grounding.PruneStatic,
		MaxFacts:    c.Grounding.MaxFacts,
		MaxActions:  c.Grounding.MaxActions,
		Logger:      log,
	}
}

// EncodeOptions returns encoder options. Call Validate first.
func (c *Config) EncodeOptions(log *zap.Logger) encode.Options {
	sem, _ := encode.ParseSemantics(c.Encoding.Semantics)
	obj, _ := encode.ParseObjective(c.Encoding.Objective)
	return encode.Options{
		Semantics:    sem,
		Objective:    obj,
		MaxVariables: c.Encoding.MaxVariables,
		Logger:       log,
	}
}

// SolverOptions returns backend options.
func (c *Config) SolverOptions(log *zap.Logger) solver.Options {
	return solver.Options{
		Timeout:   c.GetSolverTimeout(),
		NodeLimit: c.Solver.NodeLimit,
		Verbose:   c.Logging.Level == "debug",
		Logger:    log,
	}
}
