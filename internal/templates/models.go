package templates

import (
	"math"
	"time"

	"certificate-studio/generator-backend/internal/templates/placeholder"
)

// MaxCanvas is the bound a freshly loaded background is fitted into
// (A4 landscape at 96 DPI).
var MaxCanvas = CanvasDimensions{Width: 1123, Height: 794}

// Raster limits. Canvases beyond them are rejected as invalid_dimensions.
const (
	MaxCanvasSide   = 16384
	MaxCanvasPixels = 40_000_000
	MaxFontSize     = 1000
)

// CurrentVersion is written into templates created by this service.
const CurrentVersion = "1.0"

// CanvasDimensions is the canvas size in device pixels.
type CanvasDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both sides are strictly positive.
func (d CanvasDimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// WithinLimits reports whether the rounded-up raster fits MaxCanvasSide
// and MaxCanvasPixels.
func (d CanvasDimensions) WithinLimits() bool {
	if d.Width > MaxCanvasSide || d.Height > MaxCanvasSide {
		return false
	}
	return math.Ceil(d.Width)*math.Ceil(d.Height) <= MaxCanvasPixels
}

// Landscape reports whether the canvas is wider than it is tall.
func (d CanvasDimensions) Landscape() bool {
	return d.Width > d.Height
}

// FieldKind classifies a placeholder field
type FieldKind string

const (
	FieldKindName         FieldKind = "name"
	FieldKindCourse       FieldKind = "course"
	FieldKindOrganization FieldKind = "organization"
	FieldKindDate         FieldKind = "date"
	FieldKindOther        FieldKind = "other"
)

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldKindName, FieldKindCourse, FieldKindOrganization, FieldKindDate, FieldKindOther:
		return true
	}
	return false
}

// Field is a named placeholder with a default value. Elements reference it
// by Name inside {{...}} tokens; generation requests supply values by ID.
type Field struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Value string    `json:"value"`
	Kind  FieldKind `json:"type"`
}

// Template is a reusable certificate layout.
type Template struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	BackgroundImage  string           `json:"bgImage,omitempty"`
	CanvasDimensions CanvasDimensions `json:"canvasDimensions"`
	Elements         Elements         `json:"elements"`
	Fields           []Field          `json:"prefixes"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Version          string           `json:"version,omitempty"`
}

// HasBackground reports whether a background reference is set.
func (t *Template) HasBackground() bool {
	return t.BackgroundImage != ""
}

// Clone returns a deep copy so renders can work on a snapshot.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	c.Elements = cloneElements(t.Elements)
	if t.Fields != nil {
		c.Fields = make([]Field, len(t.Fields))
		copy(c.Fields, t.Fields)
	}
	return &c
}

// FindField returns the field with the given ID.
func (t *Template) FindField(id string) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FieldBindings merges values (keyed by field ID) over the field defaults.
// Bindings keep field declaration order. A value present in the map wins
// even when empty; a missing key falls back to the default.
func (t *Template) FieldBindings(values map[string]string) []placeholder.Binding {
	bindings := make([]placeholder.Binding, 0, len(t.Fields))
	for _, f := range t.Fields {
		value := f.Value
		if v, ok := values[f.ID]; ok {
			value = v
		}
		bindings = append(bindings, placeholder.Binding{Name: f.Name, Value: value})
	}
	return bindings
}

// ValueFor returns the effective value of the field with the given ID.
func (t *Template) ValueFor(values map[string]string, id string) (string, bool) {
	f, ok := t.FindField(id)
	if !ok {
		return "", false
	}
	if v, ok := values[id]; ok {
		return v, true
	}
	return f.Value, true
}

// GenerationRequest is an ephemeral request to produce one certificate.
type GenerationRequest struct {
	Template        *Template         `json:"template"`
	FieldValues     map[string]string `json:"fieldValues"`
	IncludeMetadata bool              `json:"includeMetadata"`
	Code            string            `json:"code,omitempty"`
}

// DefaultTemplate returns the starter layout offered to new designers.
func DefaultTemplate(now time.Time) *Template {
	return &Template{
		Name:             "Untitled certificate",
		CanvasDimensions: MaxCanvas,
		Elements: Elements{
			&TextElement{
				ID:         "default-text-1",
				Geometry:   Geometry{X: 150, Y: 300, Width: 800, Height: 50},
				Content:    "{{name}} completed the {{course}} course",
				FontSize:   24,
				Color:      "#000000",
				FontFamily: "Arial",
			},
		},
		Fields: []Field{
			{ID: "name", Name: "Name", Value: "John Doe", Kind: FieldKindName},
			{ID: "course", Name: "Course", Value: "Advanced React", Kind: FieldKindCourse},
			{ID: "org", Name: "Organization", Value: "Acme Corp", Kind: FieldKindOrganization},
			{ID: "date", Name: "Date", Value: now.Format("1/2/2006"), Kind: FieldKindDate},
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   CurrentVersion,
	}
}
