// Package form holds the questionnaire definition: the ordered field table,
// the step table, conditional visibility and validation. The same schema is
// used on both sides of the wire, so client checks and server checks cannot
// drift apart.
package form

import (
	"fmt"
	"regexp"
)

type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindDate     Kind = "date"
	KindChoice   Kind = "choice"
	KindNumber   Kind = "number"
)

func (k Kind) valid() bool {
	switch k {
	case KindText, KindTextarea, KindDate, KindChoice, KindNumber:
		return true
	}
	return false
}

// Condition gates a field on another field's answer. A condition only holds
// while its controlling field is itself visible, so chains of conditionals
// resolve through the fixed-point pass in Visible.
type Condition struct {
	Field  string   `yaml:"field"`
	Equals string   `yaml:"equals,omitempty"`
	Not    string   `yaml:"not,omitempty"`
	In     []string `yaml:"in,omitempty"`
}

func (c Condition) holds(value string) bool {
	switch {
	case c.Equals != "":
		return value == c.Equals
	case c.Not != "":
		return value != c.Not
	case len(c.In) > 0:
		for _, v := range c.In {
			if value == v {
				return true
			}
		}
		return false
	}
	return false
}

// Field is one questionnaire input, immutable after Load.
type Field struct {
	Key         string      `yaml:"key"`
	Kind        Kind        `yaml:"kind"`
	Label       string      `yaml:"label"`
	Step        int         `yaml:"step"`
	Required    bool        `yaml:"required,omitempty"`
	MinLen      int         `yaml:"min_len,omitempty"`
	MaxLen      int         `yaml:"max_len,omitempty"`
	Pattern     string      `yaml:"pattern,omitempty"`
	PatternHint string      `yaml:"pattern_hint,omitempty"`
	Enum        []string    `yaml:"enum,omitempty"`
	Min         *float64    `yaml:"min,omitempty"`
	Max         *float64    `yaml:"max,omitempty"`
	Check       string      `yaml:"check,omitempty"`
	VisibleWhen []Condition `yaml:"visible_when,omitempty"`

	re *regexp.Regexp
}

// Conditional reports whether the field's visibility depends on other answers.
func (f *Field) Conditional() bool {
	return len(f.VisibleWhen) > 0
}

type Step struct {
	Title string `yaml:"title"`
}

// Schema is the full ordered questionnaire definition.
type Schema struct {
	Steps  []Step  `yaml:"steps"`
	Fields []Field `yaml:"fields"`

	byKey map[string]*Field
}

// FieldByKey returns the definition for key, or nil for unknown keys.
func (s *Schema) FieldByKey(key string) *Field {
	return s.byKey[key]
}

// StepFields returns the fields owned by step index, in declared order.
func (s *Schema) StepFields(step int) []*Field {
	var fields []*Field
	for i := range s.Fields {
		if s.Fields[i].Step == step {
			fields = append(fields, &s.Fields[i])
		}
	}
	return fields
}

// StepOf maps a field key to its owning step index, -1 for unknown keys.
func (s *Schema) StepOf(key string) int {
	if f := s.byKey[key]; f != nil {
		return f.Step
	}
	return -1
}

func (s *Schema) check() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("form: schema has no steps")
	}
	s.byKey = make(map[string]*Field, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Key == "" {
			return fmt.Errorf("form: field #%d has no key", i)
		}
		if _, dup := s.byKey[f.Key]; dup {
			return fmt.Errorf("form: duplicate field key %q", f.Key)
		}
		if !f.Kind.valid() {
			return fmt.Errorf("form: field %q has unknown kind %q", f.Key, f.Kind)
		}
		if f.Step < 0 || f.Step >= len(s.Steps) {
			return fmt.Errorf("form: field %q step %d out of range", f.Key, f.Step)
		}
		if f.Kind == KindChoice && len(f.Enum) == 0 {
			return fmt.Errorf("form: choice field %q has no enum", f.Key)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("form: field %q pattern: %w", f.Key, err)
			}
			f.re = re
		}
		s.byKey[f.Key] = f
	}
	for i := range s.Fields {
		for _, cond := range s.Fields[i].VisibleWhen {
			if _, ok := s.byKey[cond.Field]; !ok {
				return fmt.Errorf("form: field %q depends on unknown field %q", s.Fields[i].Key, cond.Field)
			}
		}
	}
	return nil
}
