package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/convotest/convotest/internal/models"
)

// ParametersConfig holds the evaluation parameters a run scores against.
type ParametersConfig struct {
	Parameters []models.EvaluationParameter `yaml:"parameters"`
}

func LoadParametersConfig() (*ParametersConfig, error) {
	path := os.Getenv("PARAMETERS_CONFIG_PATH")
	if path == "" {
		path = "configs/parameters.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ParametersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *ParametersConfig) {
	for i := range cfg.Parameters {
		if cfg.Parameters[i].ID == "" {
			cfg.Parameters[i].ID = cfg.Parameters[i].Name
		}
	}
}

// Validate checks that the enabled parameters can produce a weighted
// score: at least one scored parameter, weights in range, summing to 100.
func (c *ParametersConfig) Validate() error {
	if len(c.Parameters) == 0 {
		return fmt.Errorf("no evaluation parameters configured")
	}

	seen := make(map[string]bool)
	weightSum := 0
	scored := 0

	for _, p := range c.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate parameter id: %s", p.ID)
		}
		seen[p.ID] = true

		if p.Weight < 0 || p.Weight > 100 {
			return fmt.Errorf("parameter %s has weight %d outside [0, 100]", p.Name, p.Weight)
		}
		if !p.Enabled {
			continue
		}
		weightSum += p.Weight
		if p.Scored() {
			scored++
		}
	}

	if scored == 0 {
		return fmt.Errorf("no enabled parameter with a positive weight")
	}
	if weightSum != 100 {
		return fmt.Errorf("enabled parameter weights sum to %d, expected 100", weightSum)
	}

	return nil
}
