package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"certificate-studio/generator-backend/internal/templates"
	"certificate-studio/generator-backend/internal/templates/placeholder"
)

// textLayout is a set of lines measured with one face.
type textLayout struct {
	lines  []string
	widths []fixed.Int26_6

	maxWidth   fixed.Int26_6
	lineHeight fixed.Int26_6
	ascent     fixed.Int26_6
	descent    fixed.Int26_6
}

func layoutText(face font.Face, lines []string) *textLayout {
	m := face.Metrics()
	l := &textLayout{
		lines:      lines,
		widths:     make([]fixed.Int26_6, len(lines)),
		lineHeight: m.Height,
		ascent:     m.Ascent,
		descent:    m.Descent,
	}
	for i, line := range lines {
		l.widths[i] = font.MeasureString(face, line)
		if l.widths[i] > l.maxWidth {
			l.maxWidth = l.widths[i]
		}
	}
	return l
}

// height is the extent from the first line's ascent to the last line's
// descent.
func (l *textLayout) height() fixed.Int26_6 {
	if len(l.lines) == 0 {
		return 0
	}
	return l.lineHeight*fixed.Int26_6(len(l.lines)-1) + l.ascent + l.descent
}

func (l *textLayout) fits(box templates.Geometry) bool {
	return fromFixed(l.maxWidth) <= box.Width && fromFixed(l.height()) <= box.Height
}

// drawText substitutes, lays out and draws a text element centered in its
// box.
func (c *Compositor) drawText(dst *image.RGBA, e *templates.TextElement, bindings []placeholder.Binding) error {
	content := placeholder.Substitute(e.Content, bindings)
	lines := c.markup.Lines(content, c.opts.Markup)
	if len(lines) == 0 {
		return nil
	}

	size := e.FontSize
	if size <= 0 {
		size = defaultFontSize
	}

	face, err := c.fonts.Face(e.FontFamily, size)
	if err != nil {
		return err
	}
	layout := layoutText(face, lines)

	if c.opts.Overflow == OverflowShrink {
		for !layout.fits(e.Geometry) && size > MinFontSize {
			face.Close()
			size = math.Max(MinFontSize, size-1)
			if face, err = c.fonts.Face(e.FontFamily, size); err != nil {
				return err
			}
			layout = layoutText(face, lines)
		}
	}
	defer face.Close()

	var target draw.Image = dst
	if c.opts.Overflow != OverflowVisible {
		clip := pixelRect(e.Geometry).Intersect(dst.Bounds())
		if clip.Empty() {
			return nil
		}
		target = dst.SubImage(clip).(*image.RGBA)
	}

	d := &font.Drawer{
		Dst:  target,
		Src:  image.NewUniform(textColor(e.Color)),
		Face: face,
	}

	top := e.Y + (e.Height-fromFixed(layout.height()))/2
	for i, line := range layout.lines {
		x := e.X + (e.Width-fromFixed(layout.widths[i]))/2
		baseline := top + fromFixed(layout.ascent+layout.lineHeight*fixed.Int26_6(i))
		d.Dot = fixed.Point26_6{X: toFixed(x), Y: toFixed(baseline)}
		d.DrawString(line)
	}
	return nil
}

// textColor parses a hex color, falling back to opaque black.
func textColor(s string) color.Color {
	c, err := templates.ParseHexColor(s)
	if err != nil {
		return color.Black
	}
	return c
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
