package certificates

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/internal/certificates/export"
	"certificate-studio/generator-backend/internal/certificates/render"
	"certificate-studio/generator-backend/internal/templates"
	"certificate-studio/generator-backend/internal/templates/placeholder"
)

// Renderer rasterizes templates.
type Renderer interface {
	Render(ctx context.Context, tpl *templates.Template, values map[string]string) (*render.Result, error)
}

// Exporter writes rasters as documents.
type Exporter interface {
	Export(w io.Writer, raster image.Image, dims templates.CanvasDimensions, meta *export.Metadata) error
}

// Service provides business logic for certificate generation
type Service struct {
	renderer Renderer
	exporter Exporter
	lister   assets.FileLister
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new certificates service. lister may be nil, in
// which case no metadata page is ever added.
func NewService(renderer Renderer, exporter Exporter, lister assets.FileLister, logger *zap.Logger) *Service {
	return &Service{
		renderer: renderer,
		exporter: exporter,
		lister:   lister,
		logger:   logger,
		now:      time.Now,
	}
}

// Validate checks a template without rendering it.
func (s *Service) Validate(tpl *templates.Template) *templates.ValidationResult {
	return templates.Validate(tpl)
}

// Preview renders tpl and returns it as PNG.
func (s *Service) Preview(ctx context.Context, tpl *templates.Template, values map[string]string) ([]byte, *render.Result, error) {
	if err := templates.Validate(tpl).Err(); err != nil {
		return nil, nil, err
	}

	result, err := s.renderer.Render(ctx, tpl.Clone(), values)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render preview: %w", err)
	}

	png, err := render.EncodePNG(result.Image)
	if err != nil {
		return nil, nil, err
	}
	return png, result, nil
}

// Generate validates, renders and exports one certificate. Image decode
// failures do not fail generation; they are reported in the result.
func (s *Service) Generate(ctx context.Context, req *templates.GenerationRequest) (*GenerationResult, error) {
	if req == nil {
		req = &templates.GenerationRequest{}
	}

	validation := templates.Validate(req.Template)
	if err := validation.Err(); err != nil {
		return nil, err
	}

	code := req.Code
	if code == "" {
		code = NewCertificateCode(s.now())
	} else if _, err := assets.CertificatePrefix(code); err != nil {
		return nil, err
	}

	start := s.now()
	tpl := req.Template.Clone()
	logger := s.logger.With(zap.String("certificate_code", code), zap.String("template_id", tpl.ID))

	rendered, err := s.renderer.Render(ctx, tpl, req.FieldValues)
	if err != nil {
		logger.Error("Failed to render certificate", zap.Error(err))
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	result := &GenerationResult{
		Code:        code,
		FileName:    FileNameFor(tpl, req.FieldValues),
		GeneratedAt: start,
		Failures:    rendered.Failures,
		Unbound:     unboundPlaceholders(tpl, req.FieldValues),
		Warnings:    validation.Warnings,
	}

	var meta *export.Metadata
	if req.IncludeMetadata {
		result.SourceFiles = s.sourceFiles(ctx, logger, code)
		if len(result.SourceFiles) > 0 {
			meta = &export.Metadata{
				Code:                code,
				GeneratedAt:         start,
				AssociatedFileNames: result.SourceFiles,
			}
		}
	}

	var buf bytes.Buffer
	if err := s.exporter.Export(&buf, rendered.Image, tpl.CanvasDimensions, meta); err != nil {
		logger.Error("Failed to export certificate", zap.Error(err))
		return nil, err
	}
	result.PDF = buf.Bytes()

	logger.Info("Generated certificate",
		zap.String("file_name", result.FileName),
		zap.Int("bytes", len(result.PDF)),
		zap.Int("decode_failures", len(result.Failures)),
		zap.Bool("metadata_page", meta != nil),
		zap.Duration("elapsed", s.now().Sub(start)),
	)

	return result, nil
}

// sourceFiles lists the files stored for code. Listing problems only cost
// the metadata page.
func (s *Service) sourceFiles(ctx context.Context, logger *zap.Logger, code string) []string {
	if s.lister == nil {
		return nil
	}
	files, err := s.lister.ListFiles(ctx, code)
	if err != nil {
		logger.Warn("Failed to list source files, skipping metadata page", zap.Error(err))
		return nil
	}
	return files
}

// unboundPlaceholders returns the tokens left verbatim after substitution,
// in first-seen order.
func unboundPlaceholders(tpl *templates.Template, values map[string]string) []string {
	bindings := tpl.FieldBindings(values)
	seen := make(map[string]bool)
	var out []string
	for _, e := range tpl.Elements {
		text, ok := e.(*templates.TextElement)
		if !ok {
			continue
		}
		for _, name := range placeholder.Unbound(text.Content, bindings) {
			key := placeholder.Fold(name)
			if !seen[key] {
				seen[key] = true
				out = append(out, name)
			}
		}
	}
	return out
}
