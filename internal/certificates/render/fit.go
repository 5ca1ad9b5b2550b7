package render

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"certificate-studio/generator-backend/internal/templates"
)

// maxCoord bounds pixel coordinates so float boxes convert to int safely.
const maxCoord = 1 << 30

// drawContain scales src up or down to fit inside dst, preserving aspect,
// and centers it. Uncovered areas keep whatever dst already holds.
func drawContain(dst draw.Image, src image.Image) {
	bounds := dst.Bounds()
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw <= 0 || sh <= 0 || bounds.Empty() {
		return
	}

	scale := math.Min(float64(bounds.Dx())/float64(sw), float64(bounds.Dy())/float64(sh))
	w := max(1, int(math.Round(float64(sw)*scale)))
	h := max(1, int(math.Round(float64(sh)*scale)))

	resized := imaging.Resize(src, w, h, imaging.Lanczos)
	offset := bounds.Min.Add(image.Pt((bounds.Dx()-w)/2, (bounds.Dy()-h)/2))
	draw.Draw(dst, image.Rectangle{Min: offset, Max: offset.Add(resized.Bounds().Size())}, resized, image.Point{}, draw.Over)
}

// drawCover scales src to fill box, preserving aspect, cropping the
// overflow around the center. Only the part of box that lies on dst is
// sampled; boxes reaching past the canvas never allocate at full size.
func drawCover(dst *image.RGBA, src image.Image, box templates.Geometry) {
	r := pixelRect(box)
	visible := r.Intersect(dst.Bounds())
	sb := src.Bounds()
	if visible.Empty() || sb.Empty() {
		return
	}

	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	scale := math.Max(float64(r.Dx())/sw, float64(r.Dy())/sh)
	tx := float64(r.Min.X) + (float64(r.Dx())-sw*scale)/2 - float64(sb.Min.X)*scale
	ty := float64(r.Min.Y) + (float64(r.Dy())-sh*scale)/2 - float64(sb.Min.Y)*scale

	s2d := f64.Aff3{scale, 0, tx, 0, scale, ty}
	draw.CatmullRom.Transform(dst.SubImage(visible).(*image.RGBA), s2d, src, sb, draw.Over, nil)
}

// pixelRect rounds a canvas box to whole pixels. Boxes without area give
// the empty rectangle.
func pixelRect(box templates.Geometry) image.Rectangle {
	if !(box.Width > 0) || !(box.Height > 0) {
		return image.Rectangle{}
	}
	return image.Rect(
		toPixel(box.X),
		toPixel(box.Y),
		toPixel(box.X+box.Width),
		toPixel(box.Y+box.Height),
	)
}

func toPixel(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > maxCoord:
		return maxCoord
	case v < -maxCoord:
		return -maxCoord
	}
	return int(math.Round(v))
}
