// Package manifest provides resource manifest parsing and validation for gcp-bootstrap.
//
// A manifest lists additional buckets, datasets and topics to provision next
// to the ones named in the configuration. Supports both YAML (.yaml, .yml)
// and JSON (.json) files.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/gcp-bootstrap/internal/provision"
)

// Manifest represents the manifest file structure
type Manifest struct {
	Buckets  []Bucket  `yaml:"buckets,omitempty" json:"buckets,omitempty"`
	Datasets []Dataset `yaml:"datasets,omitempty" json:"datasets,omitempty"`
	Topics   []Topic   `yaml:"topics,omitempty" json:"topics,omitempty"`
}

// Bucket is a Cloud Storage bucket entry
type Bucket struct {
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location" json:"location"`
}

// Dataset is a BigQuery dataset entry
type Dataset struct {
	ID       string `yaml:"id" json:"id"`
	Location string `yaml:"location" json:"location"`
}

// Topic is a Pub/Sub topic entry
type Topic struct {
	Name string `yaml:"name" json:"name"`
}

// Load loads and parses a manifest file (supports .yaml, .yml, and .json)
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest (unknown extension %s, tried YAML): %w", ext, err)
		}
	}

	return &m, nil
}

// Save saves the manifest to file (format determined by file extension)
func Save(m *Manifest, path string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal manifest JSON: %w", err)
		}
	} else {
		data, err = yaml.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal manifest YAML: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

// FromDescriptors builds a manifest from resource descriptors
func FromDescriptors(descriptors []provision.Descriptor) *Manifest {
	m := &Manifest{}
	for _, d := range descriptors {
		switch spec := d.(type) {
		case provision.BucketSpec:
			m.Buckets = append(m.Buckets, Bucket{Name: spec.Name, Location: spec.Location})
		case provision.DatasetSpec:
			m.Datasets = append(m.Datasets, Dataset{ID: spec.ID, Location: spec.Location})
		case provision.TopicSpec:
			m.Topics = append(m.Topics, Topic{Name: spec.Name})
		}
	}
	return m
}

// Descriptors converts the manifest entries to resource descriptors.
// Missing locations fall back to defaultLocation.
func (m *Manifest) Descriptors(defaultLocation string) []provision.Descriptor {
	var out []provision.Descriptor
	for _, b := range m.Buckets {
		out = append(out, provision.BucketSpec{Name: b.Name, Location: orDefault(b.Location, defaultLocation)})
	}
	for _, d := range m.Datasets {
		out = append(out, provision.DatasetSpec{ID: d.ID, Location: orDefault(d.Location, defaultLocation)})
	}
	for _, t := range m.Topics {
		out = append(out, provision.TopicSpec{Name: t.Name})
	}
	return out
}

// ValidationResult collects manifest problems
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func (r *ValidationResult) addError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// Validate checks every entry and reports duplicates
func (m *Manifest) Validate(defaultLocation string) *ValidationResult {
	result := &ValidationResult{Valid: true, Errors: []string{}}

	seen := map[string]bool{}
	for _, d := range m.Descriptors(defaultLocation) {
		key := string(d.Kind()) + "/" + d.Handle()
		if seen[key] {
			result.addError(fmt.Sprintf("duplicate %s %q", d.Kind(), d.Handle()))
			continue
		}
		seen[key] = true

		if err := d.Validate(); err != nil {
			result.addError(err.Error())
		}
	}

	return result
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
