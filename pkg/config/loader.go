package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadScenario loads and parses a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	scenario, err := ParseScenarioYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	return scenario, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if _, err := cfg.Server.GetGracefulTimeout(); err != nil {
		return fmt.Errorf("invalid graceful_timeout %s: %w", cfg.Server.GracefulTimeout, err)
	}

	if cfg.Defaults != nil {
		if err := validateDefaults(cfg.Defaults); err != nil {
			return fmt.Errorf("defaults validation failed: %w", err)
		}
	}

	return nil
}

// validateDefaults validates daemon-wide simulation defaults
func validateDefaults(d *Defaults) error {
	const op = "config.validateDefaults"
	if err := validateSimParams(op, d.Samples, d.PFail); err != nil {
		return err
	}
	if !validModel(d.Model) {
		return models.NewConfigurationError(op, "invalid model %s (must be without_replacement or independent)", d.Model)
	}
	if d.Workers < 0 {
		return models.NewConfigurationError(op, "workers cannot be negative, got %d", d.Workers)
	}
	return nil
}

func validModel(m string) bool {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "", "without_replacement", "independent":
		return true
	}
	return false
}

// validateSimParams rejects explicitly set trial counts and kill fractions
// outside their domain. Nil means unset.
func validateSimParams(op string, samples *int, pFail *float64) error {
	if samples != nil && *samples <= 0 {
		return models.NewConfigurationError(op, "samples must be positive, got %d", *samples)
	}
	if pFail != nil && !(*pFail > 0 && *pFail <= 1) {
		return models.NewConfigurationError(op, "p_fail must be in (0, 1], got %v", *pFail)
	}
	return nil
}

// validateScenario performs structural validation of a scenario. Unset
// simulation parameters take their defaults later.
func validateScenario(s *Scenario) error {
	const op = "config.validateScenario"

	if s.Client == "" {
		return models.NewConfigurationError(op, "client service cannot be empty")
	}

	// Validate edges
	if len(s.Edges) == 0 {
		return models.NewMalformedInputError(op, "at least one dependency edge must be defined")
	}
	for i, e := range s.Edges {
		if e.Parent == "" || e.Child == "" {
			return models.NewMalformedInputError(op, "edge %d: parent and child cannot be empty", i)
		}
	}

	// Validate replication
	if s.Replication.Default < 0 {
		return models.NewConfigurationError(op, "replication default cannot be negative, got %d", s.Replication.Default)
	}
	for svc, n := range s.Replication.Services {
		if n <= 0 {
			return models.NewConfigurationError(op, "replication: service %s: replicas must be positive, got %d", svc, n)
		}
	}

	// Validate endpoints
	if len(s.Endpoints) == 0 {
		return models.NewConfigurationError(op, "at least one endpoint must be defined")
	}
	names := make(map[string]bool)
	for i, ep := range s.Endpoints {
		if ep.Name == "" {
			return models.NewConfigurationError(op, "endpoint %d: name cannot be empty", i)
		}
		if names[ep.Name] {
			return models.NewConfigurationError(op, "duplicate endpoint name: %s", ep.Name)
		}
		names[ep.Name] = true
		if ep.Weight < 0 {
			return models.NewConfigurationError(op, "endpoint %s: weight cannot be negative, got %v", ep.Name, ep.Weight)
		}
		if len(ep.Targets) == 0 {
			return models.NewConfigurationError(op, "endpoint %s: at least one target must be defined", ep.Name)
		}
		for _, t := range ep.Targets {
			if t == "" {
				return models.NewConfigurationError(op, "endpoint %s: target cannot be empty", ep.Name)
			}
		}
		for _, x := range ep.Extras {
			if x.Service == "" {
				return models.NewConfigurationError(op, "endpoint %s: extra service cannot be empty", ep.Name)
			}
			if x.Probability < 0 || x.Probability > 1 {
				return models.NewConfigurationError(op, "endpoint %s, extra %s: probability must be between 0 and 1, got %v", ep.Name, x.Service, x.Probability)
			}
		}
	}

	// Validate simulation parameters
	sim := s.Simulation
	if err := validateSimParams(op, sim.Samples, sim.PFail); err != nil {
		return err
	}
	if !validModel(sim.Model) {
		return models.NewConfigurationError(op, "invalid model %s (must be without_replacement or independent)", sim.Model)
	}
	if sim.Workers < 0 {
		return models.NewConfigurationError(op, "workers cannot be negative, got %d", sim.Workers)
	}
	if sim.ChunkSize < 0 {
		return models.NewConfigurationError(op, "chunk_size cannot be negative, got %d", sim.ChunkSize)
	}

	return nil
}
