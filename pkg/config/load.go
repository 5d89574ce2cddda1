package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML file on top of DefaultEstimatorConfig. Keys absent
// from the file keep their defaults.
func LoadConfig(path string) (*EstimatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes on top of the defaults and validates the result
func ParseConfig(data []byte) (*EstimatorConfig, error) {
	cfg := DefaultEstimatorConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml: %w", err)
	}

	if cfg.Params == nil {
		cfg.Params = map[string]int32{}
	}

	if err := ValidateEstimatorConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
