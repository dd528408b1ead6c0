// Package prompts loads the agent system prompt templates from disk.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
)

// Load reads promptFile from dir and returns its contents as a string.
func Load(dir, promptFile string) (string, error) {
	path := filepath.Join(dir, promptFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", path, err)
	}
	return string(data), nil
}

// registryFiles names every prompt template the pipeline requires, loaded
// once at startup into an immutable Registry.
var registryFiles = []string{
	"classifier.txt",
	"extractor_tds.txt",
	"extractor_sds.txt",
	"extractor_rpi.txt",
	"extractor_coa.txt",
	"extractor_brochure.txt",
	"auditor.txt",
}

// Registry is the loaded-once, read-only set of prompt templates keyed by
// file name. It is the only process-wide state the prompts package holds,
// constructed at startup by LoadRegistry and never mutated thereafter.
type Registry struct {
	templates map[string]string
}

// LoadRegistry reads every known prompt template from dir, failing fast if
// any is missing — a missing prompt template is a configuration error, not a
// per-PDF failure.
func LoadRegistry(dir string) (*Registry, error) {
	templates := make(map[string]string, len(registryFiles))
	for _, name := range registryFiles {
		text, err := Load(dir, name)
		if err != nil {
			return nil, err
		}
		templates[name] = text
	}
	return &Registry{templates: templates}, nil
}

// Get returns the loaded contents of promptFile.
func (r *Registry) Get(promptFile string) (string, error) {
	text, ok := r.templates[promptFile]
	if !ok {
		return "", fmt.Errorf("prompt template not loaded: %s", promptFile)
	}
	return text, nil
}
