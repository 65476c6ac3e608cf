package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a Config snapshot from literal YAML bytes and validates
// it. This is not a file watcher or hot-reload mechanism — it exists so
// tests and the demo binary can express a snapshot as a fixture instead of
// hand-building nested struct literals; the excluded TOML loader/watcher
// collaborator is what assembles the snapshot in the real desktop
// application.
func FromYAML(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return cfg, nil
}
