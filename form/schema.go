package form

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

// Load decodes a schema definition and verifies its internal consistency
// (unique keys, known kinds, step ranges, resolvable conditions, compilable
// patterns).
func Load(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("form: decode schema: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

var questionnaire = sync.OnceValue(func() *Schema {
	s, err := Load(schemaYAML)
	if err != nil {
		panic(err)
	}
	return s
})

// Questionnaire returns the built-in personal-injury intake schema.
func Questionnaire() *Schema {
	return questionnaire()
}
