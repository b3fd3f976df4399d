// Package rules loads the curated rule tables from YAML and keeps them
// current while the process runs.
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Default returns the built-in rule tables.
func Default() entities.RuleSet {
	rs, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return rs
}

// Load reads a rules file. An empty path yields Default.
func Load(path string) (entities.RuleSet, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entities.RuleSet{}, fmt.Errorf("reading rules: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return entities.RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and shallowly validates a YAML rule set.
// Unknown keys are rejected so typos do not silently disable a table.
func Parse(data []byte) (entities.RuleSet, error) {
	var rs entities.RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return entities.RuleSet{}, fmt.Errorf("%w: %v", entities.ErrInvalidRules, err)
	}
	if rs.Version <= 0 {
		return entities.RuleSet{}, fmt.Errorf("%w: version must be positive", entities.ErrInvalidRules)
	}
	if len(rs.EmergencyPhrases) == 0 {
		return entities.RuleSet{}, fmt.Errorf("%w: emergency_phrases is empty", entities.ErrInvalidRules)
	}
	return rs, nil
}
