package form

// Session is one user's in-progress questionnaire: the open answer map plus
// the current step index. Writes are permissive: the schema is only enforced
// at submission time, and unknown keys are stored as-is.
type Session struct {
	schema  *Schema
	answers map[string]string
	step    int

	onChange func()
	onMove   func(step int)
}

func NewSession(schema *Schema) *Session {
	return &Session{
		schema:  schema,
		answers: map[string]string{},
	}
}

// OnChange registers a hook fired after every answer mutation. Draft autosave
// hangs off this.
func (s *Session) OnChange(fn func()) {
	s.onChange = fn
}

// OnMove registers a hook fired after every step change (the scroll-to-top
// side effect lives in the caller).
func (s *Session) OnMove(fn func(step int)) {
	s.onMove = fn
}

// Set overwrites the answer for key, last write wins.
func (s *Session) Set(key, value string) {
	s.answers[key] = value
	if s.onChange != nil {
		s.onChange()
	}
}

// Get returns the current answer for key, "" when unset.
func (s *Session) Get(key string) string {
	return s.answers[key]
}

// Answers returns a snapshot copy of the answer map.
func (s *Session) Answers() map[string]string {
	snapshot := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		snapshot[k] = v
	}
	return snapshot
}

// Replace swaps in a whole answer map and step index, used by draft restore.
func (s *Session) Replace(answers map[string]string, step int) {
	s.answers = make(map[string]string, len(answers))
	for k, v := range answers {
		s.answers[k] = v
	}
	s.step = s.clamp(step)
}

// Reset clears every answer and returns to the first step.
func (s *Session) Reset() {
	s.answers = map[string]string{}
	s.step = 0
}

func (s *Session) Schema() *Schema { return s.schema }

func (s *Session) Step() int { return s.step }

// Next advances one step; at the last step it is a no-op. Navigation never
// validates, skipping ahead with incomplete steps is allowed.
func (s *Session) Next() {
	s.move(s.step + 1)
}

// Previous retreats one step; at the first step it is a no-op.
func (s *Session) Previous() {
	s.move(s.step - 1)
}

// GoTo jumps directly to a step, clamped to the valid range.
func (s *Session) GoTo(step int) {
	s.move(s.clamp(step))
}

func (s *Session) move(step int) {
	if step < 0 || step >= len(s.schema.Steps) || step == s.step {
		return
	}
	s.step = step
	if s.onMove != nil {
		s.onMove(step)
	}
}

func (s *Session) clamp(step int) int {
	if step < 0 {
		return 0
	}
	if step >= len(s.schema.Steps) {
		return len(s.schema.Steps) - 1
	}
	return step
}
