package form

// Visible computes the set of currently relevant field keys for the given
// answers. Evaluation is a fixed-point pass over the whole field table: a
// conditional field only becomes visible once every controlling field is
// itself visible and its condition holds. This lets a later field depend on
// an answer that is itself conditional, regardless of declaration order.
//
// Hidden fields keep whatever value the answer map holds; visibility only
// decides what gets rendered and validated.
func (s *Schema) Visible(answers map[string]string) map[string]bool {
	visible := make(map[string]bool, len(s.Fields))
	for {
		changed := false
		for i := range s.Fields {
			f := &s.Fields[i]
			if visible[f.Key] {
				continue
			}
			if s.conditionsHold(f, visible, answers) {
				visible[f.Key] = true
				changed = true
			}
		}
		if !changed {
			return visible
		}
	}
}

func (s *Schema) conditionsHold(f *Field, visible map[string]bool, answers map[string]string) bool {
	for _, cond := range f.VisibleWhen {
		if !visible[cond.Field] || !cond.holds(answers[cond.Field]) {
			return false
		}
	}
	return true
}

// VisibleStepFields returns the ordered fields a renderer should show for one
// step, given the current answers.
func (s *Schema) VisibleStepFields(step int, answers map[string]string) []*Field {
	visible := s.Visible(answers)
	var fields []*Field
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Step == step && visible[f.Key] {
			fields = append(fields, f)
		}
	}
	return fields
}
