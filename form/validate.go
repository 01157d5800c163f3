package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError reports the first field that failed validation, together with
// the step that owns it so a caller can jump straight there.
type FieldError struct {
	Key     string `json:"field"`
	Step    int    `json:"step"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Key + ": " + e.Message
}

const dateLayout = "2006-01-02"

var (
	reDate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// swapped out by date-sensitive tests
	now = time.Now
)

// Validate runs the whole field table against answers in declared order and
// stops at the first failure. Only currently-visible fields are checked:
// a required field hidden by its controlling answer never blocks submission.
// Values are trimmed before checking; optional fields left blank are skipped.
func (s *Schema) Validate(answers map[string]string) *FieldError {
	visible := s.Visible(answers)
	for i := range s.Fields {
		f := &s.Fields[i]
		if !visible[f.Key] {
			continue
		}
		value := strings.TrimSpace(answers[f.Key])
		if value == "" {
			if f.Required {
				return fail(f, "%s is required", f.Label)
			}
			continue
		}
		if err := f.checkValue(value); err != nil {
			return err
		}
	}
	return nil
}

func (f *Field) checkValue(value string) *FieldError {
	if f.MinLen > 0 && utf8.RuneCountInString(value) < f.MinLen {
		return fail(f, "%s must be at least %d characters", f.Label, f.MinLen)
	}
	if f.MaxLen > 0 && utf8.RuneCountInString(value) > f.MaxLen {
		return fail(f, "%s must be less than %d characters", f.Label, f.MaxLen)
	}
	if f.re != nil && !f.re.MatchString(value) {
		hint := f.PatternHint
		if hint == "" {
			hint = fmt.Sprintf("%s has an invalid format", f.Label)
		}
		return fail(f, "%s", hint)
	}

	switch f.Kind {
	case KindChoice:
		for _, v := range f.Enum {
			if value == v {
				return nil
			}
		}
		return fail(f, "%s has an invalid value", f.Label)

	case KindNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fail(f, "%s must be a number", f.Label)
		}
		if f.Min != nil && n < *f.Min {
			return fail(f, "%s must be at least %v", f.Label, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fail(f, "%s must be at most %v", f.Label, *f.Max)
		}

	case KindDate:
		if !reDate.MatchString(value) {
			return fail(f, "Invalid date format (YYYY-MM-DD)")
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			return fail(f, "Invalid date format (YYYY-MM-DD)")
		}
	}

	return f.namedCheck(value)
}

func (f *Field) namedCheck(value string) *FieldError {
	switch f.Check {
	case "":
		return nil

	case "email":
		if !reEmail.MatchString(value) {
			return fail(f, "Invalid email address")
		}

	case "birth-date":
		birth, err := time.Parse(dateLayout, value)
		if err != nil {
			return fail(f, "Invalid date format (YYYY-MM-DD)")
		}
		age := now().Year() - birth.Year()
		if age < 16 || age > 120 {
			return fail(f, "Age must be between 16 and 120 years")
		}

	case "past-date":
		date, err := time.Parse(dateLayout, value)
		if err != nil {
			return fail(f, "Invalid date format (YYYY-MM-DD)")
		}
		if date.After(now()) {
			return fail(f, "%s cannot be in the future", f.Label)
		}
	}
	return nil
}

func fail(f *Field, msg string, args ...any) *FieldError {
	return &FieldError{
		Key:     f.Key,
		Step:    f.Step,
		Message: fmt.Sprintf(msg, args...),
	}
}
