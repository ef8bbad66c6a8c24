package face

import (
	"image"
	"image/draw"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside b, clipped to the image bounds. It
// reports false when nothing is left after clipping.
func Crop(img image.Image, b Box) (image.Image, bool) {
	r := b.Rect().Intersect(img.Bounds())
	if r.Empty() {
		return nil, false
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r), true
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, true
}
