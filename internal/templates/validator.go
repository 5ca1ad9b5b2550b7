package templates

import (
	"fmt"
	"math"
	"strings"

	"certificate-studio/generator-backend/internal/templates/placeholder"
)

// FieldError is a single validation problem
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult contains the result of validation
type ValidationResult struct {
	IsValid  bool         `json:"is_valid"`
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []FieldError `json:"warnings,omitempty"`
}

// Err returns nil for a valid result, otherwise a *ValidationError.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// Validate checks a template before it is stored or rendered. Problems that
// would make rendering ambiguous or impossible are errors; unbound
// placeholders are only warnings because rendering leaves them verbatim.
func Validate(t *Template) *ValidationResult {
	result := &ValidationResult{IsValid: true}
	if t == nil {
		result.addError("template", CodeRequired, "Template is required")
		return result
	}

	if strings.TrimSpace(t.Name) == "" {
		result.addError("name", CodeRequired, "Template name is required")
	}

	switch dims := t.CanvasDimensions; {
	case !dims.Valid():
		result.addError("canvasDimensions", CodeInvalidDimensions,
			fmt.Sprintf("Canvas dimensions must be positive, got %gx%g", dims.Width, dims.Height))
	case !dims.WithinLimits():
		result.addError("canvasDimensions", CodeInvalidDimensions,
			fmt.Sprintf("Canvas dimensions %gx%g exceed %d pixels per side or %d pixels in total",
				dims.Width, dims.Height, MaxCanvasSide, MaxCanvasPixels))
	}

	validateFields(t.Fields, result)
	validateElements(t, result)

	result.IsValid = len(result.Errors) == 0
	return result
}

// validateFields checks ids, names and kinds of the placeholder fields
func validateFields(fields []Field, result *ValidationResult) {
	ids := make(map[string]int, len(fields))
	names := make(map[string]int, len(fields))

	for i, f := range fields {
		fieldPath := fmt.Sprintf("prefixes[%d]", i)

		if f.ID == "" {
			result.addError(fieldPath+".id", CodeRequired, "Field id is required")
		} else if prev, dup := ids[f.ID]; dup {
			result.addError(fieldPath+".id", CodeDuplicate, fmt.Sprintf("Field id %q already used by prefixes[%d]", f.ID, prev))
		} else {
			ids[f.ID] = i
		}

		if strings.TrimSpace(f.Name) == "" {
			result.addError(fieldPath+".name", CodeRequired, "Field name is required")
		} else {
			folded := placeholder.Fold(f.Name)
			if prev, dup := names[folded]; dup {
				result.addError(fieldPath+".name", CodeSubstitutionAmbiguity,
					fmt.Sprintf("Field name %q collides with prefixes[%d] when case is ignored", f.Name, prev))
			} else {
				names[folded] = i
			}
			if strings.ContainsAny(f.Name, "{}") {
				result.addError(fieldPath+".name", CodeInvalid, "Field name must not contain braces")
			}
		}

		if f.Kind != "" && !f.Kind.Valid() {
			result.addError(fieldPath+".type", CodeInvalid,
				fmt.Sprintf("Field type must be one of name, course, organization, date, other; got %q", f.Kind))
		}
	}
}

// validateElements checks every element and collects unbound placeholders
func validateElements(t *Template, result *ValidationResult) {
	ids := make(map[string]int, len(t.Elements))
	bindings := t.FieldBindings(nil)

	for i, e := range t.Elements {
		fieldPath := fmt.Sprintf("elements[%d]", i)
		if e == nil {
			result.addError(fieldPath, CodeRequired, "Element is required")
			continue
		}

		if id := e.ElementID(); id == "" {
			result.addError(fieldPath+".id", CodeRequired, "Element id is required")
		} else if prev, dup := ids[id]; dup {
			result.addError(fieldPath+".id", CodeDuplicate, fmt.Sprintf("Element id %q already used by elements[%d]", id, prev))
		} else {
			ids[id] = i
		}

		box := e.Box()
		if !finite(box.X, box.Y, box.Width, box.Height) {
			result.addError(fieldPath, CodeInvalid, "Element position and size must be finite numbers")
		} else if box.Width < 0 || box.Height < 0 {
			result.addError(fieldPath, CodeInvalid, "Element width and height must be non-negative")
		}

		switch v := e.(type) {
		case *TextElement:
			if !(v.FontSize > 0) || v.FontSize > MaxFontSize {
				result.addError(fieldPath+".fontSize", CodeInvalid,
					fmt.Sprintf("Font size must be between 0 and %d", MaxFontSize))
			}
			if v.Color != "" {
				if _, err := ParseHexColor(v.Color); err != nil {
					result.addError(fieldPath+".color", CodeInvalid, "Color must be a hex value such as #000000")
				}
			}
			for _, name := range placeholder.Unbound(v.Content, bindings) {
				result.addWarning(fieldPath+".content", "unbound_placeholder",
					fmt.Sprintf("Placeholder %s has no matching field", placeholder.Token(name)))
			}
		case *ImageElement:
		default:
			result.addError(fieldPath, CodeUnsupportedElementType, fmt.Sprintf("Unsupported element type %T", e))
		}
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// addError adds an error to the validation result
func (r *ValidationResult) addError(field, code, message string) {
	r.Errors = append(r.Errors, FieldError{
		Field:   field,
		Code:    code,
		Message: message,
	})
	r.IsValid = false
}

func (r *ValidationResult) addWarning(field, code, message string) {
	r.Warnings = append(r.Warnings, FieldError{
		Field:   field,
		Code:    code,
		Message: message,
	})
}
