package certificates

import (
	"time"

	"certificate-studio/generator-backend/internal/certificates/render"
	"certificate-studio/generator-backend/internal/templates"
)

// PreviewRequest asks for a PNG rendering of a template.
type PreviewRequest struct {
	Template    *templates.Template `json:"template" binding:"required"`
	FieldValues map[string]string   `json:"fieldValues"`
}

// GenerationResult is a finished certificate.
type GenerationResult struct {
	Code        string                 `json:"code"`
	FileName    string                 `json:"file_name"`
	PDF         []byte                 `json:"-"`
	GeneratedAt time.Time              `json:"generated_at"`
	Failures    []render.DecodeFailure `json:"failures,omitempty"`
	Unbound     []string               `json:"unbound,omitempty"`
	Warnings    []templates.FieldError `json:"warnings,omitempty"`
	SourceFiles []string               `json:"source_files,omitempty"`
	URL         string                 `json:"url,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error  string                 `json:"error"`
	Errors []templates.FieldError `json:"errors,omitempty"`
}
