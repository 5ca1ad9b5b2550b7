package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/internal/templates"
)

var errNoImage = errors.New("resolver returned no image")

// DecodeFailure records an image that could not be drawn. ElementID is
// empty for the background.
type DecodeFailure struct {
	ElementID string `json:"elementId,omitempty"`
	Source    string `json:"source"`
	Err       error  `json:"-"`
}

// Reason is the failure message for logs and API responses.
func (f DecodeFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result is a rendered certificate raster.
type Result struct {
	Image    *image.RGBA
	Failures []DecodeFailure
}

// Compositor rasterizes templates. It is safe for concurrent use.
type Compositor struct {
	resolver assets.ImageResolver
	fonts    *FontBook
	markup   *markupConverter
	opts     Options
	logger   *zap.Logger
}

// NewCompositor creates a compositor. A nil logger disables logging.
func NewCompositor(resolver assets.ImageResolver, fonts *FontBook, opts Options, logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{
		resolver: resolver,
		fonts:    fonts,
		markup:   newMarkupConverter(),
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// decodeJob is one image reference to resolve. index is the element index,
// or -1 for the background.
type decodeJob struct {
	index     int
	elementID string
	source    string
}

// Render draws tpl with values merged over the field defaults. The raster
// is ceil(width) by ceil(height) pixels on a white surface; the background
// is drawn contained and elements follow in declaration order. Images that
// fail to resolve are skipped and reported in Result.Failures.
func (c *Compositor) Render(ctx context.Context, tpl *templates.Template, values map[string]string) (*Result, error) {
	if tpl == nil {
		return nil, fmt.Errorf("render: %w", templates.ErrInvalidTemplate)
	}
	dims := tpl.CanvasDimensions
	if !dims.Valid() || !dims.WithinLimits() {
		return nil, fmt.Errorf("render %gx%g canvas: %w", dims.Width, dims.Height, templates.ErrInvalidDimensions)
	}

	start := time.Now()
	width, height := int(math.Ceil(dims.Width)), int(math.Ceil(dims.Height))
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	decoded, failures := c.decodeAll(ctx, tpl)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render canceled: %w", err)
	}

	if bg, ok := decoded[-1]; ok {
		drawContain(canvas, bg)
	}

	bindings := tpl.FieldBindings(values)
	for i, e := range tpl.Elements {
		switch v := e.(type) {
		case *templates.TextElement:
			if err := c.drawText(canvas, v, bindings); err != nil {
				return nil, fmt.Errorf("failed to draw text element %s: %w", v.ID, err)
			}
		case *templates.ImageElement:
			if img, ok := decoded[i]; ok {
				drawCover(canvas, img, v.Geometry)
			}
		}
	}

	c.logger.Debug("Rendered certificate",
		zap.String("template_id", tpl.ID),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("elements", len(tpl.Elements)),
		zap.Int("decode_failures", len(failures)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{Image: canvas, Failures: failures}, nil
}

// decodeAll resolves the background and every image element in parallel.
// Results are keyed by element index so drawing order does not depend on
// completion order.
func (c *Compositor) decodeAll(ctx context.Context, tpl *templates.Template) (map[int]image.Image, []DecodeFailure) {
	var jobs []decodeJob
	if tpl.HasBackground() {
		jobs = append(jobs, decodeJob{index: -1, source: tpl.BackgroundImage})
	}
	for i, e := range tpl.Elements {
		if img, ok := e.(*templates.ImageElement); ok && img.HasSource() {
			jobs = append(jobs, decodeJob{index: i, elementID: img.ID, source: img.Source})
		}
	}

	images := make([]image.Image, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(c.opts.DecodeConcurrency)
	for n, job := range jobs {
		g.Go(func() error {
			decodeCtx, cancel := context.WithTimeout(ctx, c.opts.DecodeTimeout)
			defer cancel()
			images[n], errs[n] = c.resolver.Resolve(decodeCtx, job.source)
			return nil
		})
	}
	_ = g.Wait()

	decoded := make(map[int]image.Image, len(jobs))
	var failures []DecodeFailure
	for n, job := range jobs {
		if errs[n] == nil && images[n] != nil {
			decoded[job.index] = images[n]
			continue
		}
		err := errs[n]
		if err == nil {
			err = errNoImage
		}
		failures = append(failures, DecodeFailure{ElementID: job.elementID, Source: assets.Redact(job.source), Err: err})
		c.logger.Warn("Image could not be decoded, drawing without it",
			zap.String("element_id", job.elementID),
			zap.String("source", assets.Redact(job.source)),
			zap.Error(err),
		)
	}
	return decoded, failures
}
