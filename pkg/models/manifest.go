package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes sample vendors and invoices to load into a sandbox Alma
// instance, keyed by a free-form vendor label. JSON manifests parse as well.
type Manifest map[string]VendorFixture

// VendorFixture is one vendor with the invoices to create for it.
type VendorFixture struct {
	Abbreviation string           `yaml:"abbreviation"`
	VendorData   map[string]any   `yaml:"vendor_data"`
	Invoices     []InvoiceFixture `yaml:"invoices"`
}

// InvoiceFixture holds the raw invoice body posted to Alma and the lines to
// attach to it once created.
type InvoiceFixture struct {
	PostJSON     map[string]any   `yaml:"post_json"`
	InvoiceLines []map[string]any `yaml:"invoice_lines"`
}

// Code returns the vendor code from the vendor data.
func (v VendorFixture) Code() (string, error) {
	code, ok := v.VendorData["code"].(string)
	if !ok || code == "" {
		return "", fmt.Errorf("vendor data has no code")
	}
	return code, nil
}

// Labels returns the manifest keys in a stable order.
func (m Manifest) Labels() []string {
	labels := make([]string, 0, len(m))
	for k := range m {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// FromFile reads a manifest from a YAML or JSON file.
func FromFile(filePath string) (Manifest, error) {
	path, err := expandPath(filePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if len(manifest) == 0 {
		return nil, fmt.Errorf("manifest %s has no vendors", path)
	}
	return manifest, nil
}
