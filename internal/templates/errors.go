package templates

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTemplate is matched by every *ValidationError.
	ErrInvalidTemplate = errors.New("templates: invalid template")
	// ErrInvalidDimensions means a canvas side is zero or negative.
	ErrInvalidDimensions = errors.New("templates: canvas dimensions must be positive")
	// ErrSubstitutionAmbiguity means two field names collide after case folding.
	ErrSubstitutionAmbiguity = errors.New("templates: field names collide case-insensitively")
)

// Validation error codes.
const (
	CodeRequired               = "required"
	CodeInvalid                = "invalid"
	CodeDuplicate              = "duplicate"
	CodeInvalidDimensions      = "invalid_dimensions"
	CodeSubstitutionAmbiguity  = "substitution_ambiguity"
	CodeUnsupportedElementType = "unsupported_element_type"
)

// ValidationError is returned when a template fails validation. It carries
// every problem found, not just the first.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrInvalidTemplate.Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidTemplate.Error(), strings.Join(msgs, "; "))
}

// Is matches ErrInvalidTemplate always, and the dimension and ambiguity
// sentinels when an error with the corresponding code is present.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrInvalidTemplate:
		return true
	case ErrInvalidDimensions:
		return e.has(CodeInvalidDimensions)
	case ErrSubstitutionAmbiguity:
		return e.has(CodeSubstitutionAmbiguity)
	}
	return false
}

func (e *ValidationError) has(code string) bool {
	for _, fe := range e.Errors {
		if fe.Code == code {
			return true
		}
	}
	return false
}
