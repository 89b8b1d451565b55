package engine

import (
	"fmt"

	"github.com/cpcf/weftc/config"
)

// BundleConfig is an optional YAML-loadable description of an engine setup:
// which files make up a bundle and how to configure the façade around them,
// so a caller doesn't have to hardcode AddTemplateItem/Option calls.
type BundleConfig struct {
	Namespace        string   `yaml:"namespace"`
	AssemblyName     string   `yaml:"assembly_name"`
	DefaultBaseClass string   `yaml:"default_base_class"`
	DebugLineNumbers bool     `yaml:"debug_line_numbers"`
	GlobalImports    []string `yaml:"global_imports"`
	Files            []string `yaml:"files"`
}

// Validate implements config.Validator.
func (c *BundleConfig) Validate() error {
	if len(c.Files) == 0 {
		return fmt.Errorf("bundle config: at least one file is required")
	}
	return nil
}

// LoadBundleConfig reads a YAML bundle description from path.
func LoadBundleConfig(path string) (*BundleConfig, error) {
	var cfg BundleConfig
	if err := config.LoadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Options derives the functional options implied by this config, excluding
// AddTemplateItem calls for Files (the caller must read and add those, since
// loading source files is the SourceLoader's job, not config's).
func (c *BundleConfig) Options() []Option {
	opts := []Option{
		WithNamespace(c.Namespace),
		WithAssemblyName(c.AssemblyName),
		WithDefaultBaseClass(c.DefaultBaseClass),
		WithDebugLineNumbers(c.DebugLineNumbers),
	}
	if len(c.GlobalImports) > 0 {
		opts = append(opts, WithGlobalImports(c.GlobalImports...))
	}
	return opts
}
