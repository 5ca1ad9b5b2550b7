package templates

// Rescale returns copies of elements with their geometry scaled from one
// canvas size to another. Content and styling are untouched. If from has a
// zero or negative side the copies are returned unscaled.
func Rescale(elements Elements, from, to CanvasDimensions) Elements {
	if !from.Valid() || from == to {
		return cloneElements(elements)
	}

	scaleX := to.Width / from.Width
	scaleY := to.Height / from.Height

	scaled := make(Elements, len(elements))
	for i, e := range elements {
		if e != nil {
			scaled[i] = e.withBox(e.Box().Scale(scaleX, scaleY))
		}
	}
	return scaled
}

// FitCanvas shrinks natural to fit within bound, preserving aspect ratio.
// Width is capped first, then height. Sizes already inside the bound are
// returned as-is.
func FitCanvas(natural, bound CanvasDimensions) CanvasDimensions {
	if !natural.Valid() {
		return bound
	}

	width, height := natural.Width, natural.Height
	aspect := width / height

	if width > bound.Width {
		width = bound.Width
		height = width / aspect
	}
	if height > bound.Height {
		height = bound.Height
		width = height * aspect
	}

	return CanvasDimensions{Width: width, Height: height}
}

// ApplyBackground swaps in a new background whose decoded size is natural.
// The canvas is refitted to MaxCanvas and the elements are rescaled before
// the new dimensions are stored, so the layout keeps its proportions.
func (t *Template) ApplyBackground(ref string, natural CanvasDimensions) {
	current := t.CanvasDimensions
	if !current.Valid() {
		current = MaxCanvas
	}

	next := FitCanvas(natural, MaxCanvas)
	t.Elements = Rescale(t.Elements, current, next)
	t.CanvasDimensions = next
	t.BackgroundImage = ref
}
