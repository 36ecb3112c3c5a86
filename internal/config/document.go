// Package config decodes the YAML document backing the Model Registry,
// adapted from the teacher's internal/config/config.go LoadFromFile:
// same read-expand-unmarshal pipeline, with ${VAR} environment
// expansion, repurposed from gateway server config onto a list of model
// definitions. Validating the decoded models is left to pkg/registry.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// Document is the on-disk shape of the registry's YAML config file.
type Document struct {
	Models []types.ModelDefinition `yaml:"models"`

	// TaskPreferences maps a task_type string to an ordered list of
	// preferred model ids, per spec §6's configuration document shape.
	TaskPreferences map[string]TaskPreference `yaml:"task_preferences"`
}

// TaskPreference is one entry of the config document's task_preferences
// map: an ordered list of model ids biasing scoring for that task type.
type TaskPreference struct {
	Preferred []string `yaml:"preferred"`
}

// Load reads path, expands ${VAR} environment references, and decodes
// it into a Document. It does not validate individual model
// definitions; that is the registry's job.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry config: %w", err)
	}
	return Decode(data)
}

// Decode parses raw YAML bytes into a Document after environment
// expansion, without touching the filesystem. Used directly by tests
// and by callers holding config in memory (e.g. fetched remotely).
func Decode(data []byte) (*Document, error) {
	expanded := os.ExpandEnv(string(data))

	var doc Document
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return &doc, nil
}
