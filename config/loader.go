// Package config loads the YAML-expressible subset of engine wiring —
// engine.BundleConfig, for command-driven or config-file-driven callers —
// without any compiler/template semantics living in the YAML itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by a config target that needs post-unmarshal
// checks LoadYAML/LoadYAMLFromString can't express structurally (e.g.
// BundleConfig rejecting a config that lists no files).
type Validator interface {
	Validate() error
}

// LoadYAML reads path, unmarshals it into target, and runs target's
// Validate method if it implements Validator.
func LoadYAML[T any](path string, target *T) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %q: %w", path, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file does not exist: %s", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", absPath, err)
	}

	return unmarshalAndValidate(data, target)
}

// LoadYAMLFromString is LoadYAML without a file, for callers assembling
// BundleConfig from an embedded default or a test fixture.
func LoadYAMLFromString[T any](yamlContent string, target *T) error {
	return unmarshalAndValidate([]byte(yamlContent), target)
}

func unmarshalAndValidate[T any](data []byte, target *T) error {
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse YAML configuration: %w", err)
	}
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return nil
}
