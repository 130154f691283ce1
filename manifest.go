package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var manifestYAML []byte

// Manifest fixes, at build time, where the reference module lives and which
// of its names are exported.
type Manifest struct {
	Reference ReferenceConfig `yaml:"reference"`
	Vectors   []string        `yaml:"vectors"`
}

// ReferenceConfig locates the reference module.
type ReferenceConfig struct {
	Path   string `yaml:"path"`   // relative to the tool's own directory
	Module string `yaml:"module"` // dotted module name, default "tests"
}

// LoadManifest parses and validates a manifest. Unknown keys are rejected.
func LoadManifest(data []byte) (Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

// MustLoadManifest returns the embedded manifest or panics.
func MustLoadManifest() Manifest {
	m, err := LoadManifest(manifestYAML)
	if err != nil {
		panic(err)
	}
	return m
}

// ApplyDefaults fills empty fields with default values.
func (m *Manifest) ApplyDefaults() {
	if m.Reference.Module == "" {
		m.Reference.Module = "tests"
	}
}

// Validate checks the manifest for correctness.
func (m *Manifest) Validate() error {
	if m.Reference.Path == "" {
		return errors.New("reference.path is required")
	}
	if filepath.IsAbs(m.Reference.Path) {
		return fmt.Errorf("reference.path must be relative to the tool, got %q", m.Reference.Path)
	}
	for _, part := range strings.Split(m.Reference.Module, ".") {
		if !isIdentifier(part) {
			return fmt.Errorf("reference.module must be a dotted identifier, got %q", m.Reference.Module)
		}
	}
	if len(m.Vectors) == 0 {
		return errors.New("vectors must list at least one name")
	}
	seen := make(map[string]bool, len(m.Vectors))
	for i, name := range m.Vectors {
		if !isIdentifier(name) {
			return fmt.Errorf("vectors[%d] must be an identifier, got %q", i, name)
		}
		if seen[name] {
			return fmt.Errorf("vectors[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}
