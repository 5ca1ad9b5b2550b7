package templates

import (
	"encoding/json"
	"fmt"
)

// ElementType discriminates the Element sum type on the wire.
type ElementType string

const (
	ElementTypeText  ElementType = "text"
	ElementTypeImage ElementType = "image"
)

// Geometry is an element box in canvas pixels, origin top-left.
// Boxes may overlap and may extend past the canvas edges.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale returns g with each axis multiplied by its factor.
func (g Geometry) Scale(sx, sy float64) Geometry {
	return Geometry{
		X:      g.X * sx,
		Y:      g.Y * sy,
		Width:  g.Width * sx,
		Height: g.Height * sy,
	}
}

// Element is either a *TextElement or an *ImageElement. The set is closed;
// switch on the concrete type to handle each variant.
type Element interface {
	ElementID() string
	Type() ElementType
	Box() Geometry

	withBox(Geometry) Element
	clone() Element
}

// TextElement is a positioned text region. Content may hold {{field}}
// tokens and rich-text markup.
type TextElement struct {
	ID string `json:"id"`
	Geometry
	Content    string  `json:"content"`
	FontSize   float64 `json:"fontSize"`
	Color      string  `json:"color"`
	FontFamily string  `json:"fontFamily"`
}

func (e *TextElement) ElementID() string { return e.ID }
func (e *TextElement) Type() ElementType { return ElementTypeText }
func (e *TextElement) Box() Geometry     { return e.Geometry }

func (e *TextElement) withBox(g Geometry) Element {
	c := *e
	c.Geometry = g
	return &c
}

func (e *TextElement) clone() Element {
	c := *e
	return &c
}

// ImageElement is a positioned image region. An empty Source means no
// image has been chosen yet.
type ImageElement struct {
	ID string `json:"id"`
	Geometry
	Source string `json:"src"`

	// OriginalFile names the upload this element came from. It is never
	// persisted.
	OriginalFile string `json:"-"`
}

func (e *ImageElement) ElementID() string { return e.ID }
func (e *ImageElement) Type() ElementType { return ElementTypeImage }
func (e *ImageElement) Box() Geometry     { return e.Geometry }

func (e *ImageElement) withBox(g Geometry) Element {
	c := *e
	c.Geometry = g
	return &c
}

func (e *ImageElement) clone() Element {
	c := *e
	return &c
}

// HasSource reports whether an image reference is set.
func (e *ImageElement) HasSource() bool {
	return e.Source != ""
}

// Elements is an ordered element list; later elements paint over earlier ones.
type Elements []Element

// Find returns the element with the given ID.
func (es Elements) Find(id string) (Element, bool) {
	for _, e := range es {
		if e.ElementID() == id {
			return e, true
		}
	}
	return nil, false
}

type textWire struct {
	Type ElementType `json:"type"`
	*TextElement
}

type imageWire struct {
	Type   ElementType `json:"type"`
	ID     string      `json:"id"`
	Source *string     `json:"src"`
	Geometry
}

// MarshalJSON writes each element with its "type" discriminator.
func (es Elements) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(es))
	for i, e := range es {
		var (
			raw []byte
			err error
		)
		switch v := e.(type) {
		case *TextElement:
			raw, err = json.Marshal(textWire{Type: ElementTypeText, TextElement: v})
		case *ImageElement:
			w := imageWire{Type: ElementTypeImage, ID: v.ID, Geometry: v.Geometry}
			if v.Source != "" {
				src := v.Source
				w.Source = &src
			}
			raw, err = json.Marshal(w)
		default:
			err = fmt.Errorf("unsupported element type %T", e)
		}
		if err != nil {
			return nil, fmt.Errorf("elements[%d]: %w", i, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes elements by their "type" discriminator.
func (es *Elements) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	result := make(Elements, 0, len(raws))
	for i, raw := range raws {
		var head struct {
			Type ElementType `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("elements[%d]: %w", i, err)
		}

		switch head.Type {
		case ElementTypeText:
			var t TextElement
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("elements[%d]: %w", i, err)
			}
			result = append(result, &t)
		case ElementTypeImage:
			var w imageWire
			if err := json.Unmarshal(raw, &w); err != nil {
				return fmt.Errorf("elements[%d]: %w", i, err)
			}
			img := &ImageElement{ID: w.ID, Geometry: w.Geometry}
			if w.Source != nil {
				img.Source = *w.Source
			}
			result = append(result, img)
		default:
			return fmt.Errorf("elements[%d]: unknown element type %q", i, head.Type)
		}
	}

	*es = result
	return nil
}

func cloneElements(es Elements) Elements {
	if es == nil {
		return nil
	}
	out := make(Elements, len(es))
	for i, e := range es {
		if e != nil {
			out[i] = e.clone()
		}
	}
	return out
}
