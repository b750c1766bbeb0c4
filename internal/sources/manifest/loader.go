// Package manifest reads local recitation manifests.
package manifest

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{\s*(NOOR_VAR_[A-Z0-9_]+)\s*\}\}`)

// Loader reads and parses one manifest file.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for filePath.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Path returns the manifest file path.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the manifest.
func (l *Loader) Load() (Manifest, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	data = expandTemplateVariables(data, os.Getenv)

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest yaml: %w", err)
	}
	return m, nil
}

// expandTemplateVariables replaces {{NOOR_VAR_...}} with the environment
// value of the same name, or an empty string when unset.
// Example: audioBase: {{NOOR_VAR_CDN}} -> audioBase: https://cdn.example.org
func expandTemplateVariables(data []byte, getenv func(string) string) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := templateVar.FindSubmatch(m)[1]
		return []byte(getenv(string(name)))
	})
}
