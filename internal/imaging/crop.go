package imaging

import (
	"image"
	"image/color"
)

// DefaultBackground is the padding colour trimmed when none is configured.
var DefaultBackground = color.RGBA{255, 255, 255, 255}

// ContentBounds returns the smallest rectangle holding every pixel that is
// not background. A pixel is background when it is fully transparent or
// within tolerance of bg on every channel. When nothing but background is
// found, the full bounds are returned.
func ContentBounds(img *image.RGBA, bg color.RGBA, tolerance int) image.Rectangle {
	b := img.Bounds()
	if b.Empty() {
		return b
	}

	want := [4]uint8{bg.R, bg.G, bg.B, bg.A}
	isBackground := func(x, y int) bool {
		return similar(pixelAt(img, x, y), want, tolerance)
	}
	rowEmpty := func(y int) bool {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isBackground(x, y) {
				return false
			}
		}
		return true
	}

	top := b.Min.Y
	for top < b.Max.Y && rowEmpty(top) {
		top++
	}
	if top == b.Max.Y {
		return b
	}
	bottom := b.Max.Y
	for rowEmpty(bottom - 1) {
		bottom--
	}

	colEmpty := func(x int) bool {
		for y := top; y < bottom; y++ {
			if !isBackground(x, y) {
				return false
			}
		}
		return true
	}
	left := b.Min.X
	for colEmpty(left) {
		left++
	}
	right := b.Max.X
	for colEmpty(right - 1) {
		right--
	}

	return image.Rect(left, top, right, bottom)
}

// Crop copies r out of img into a new image anchored at the origin.
func Crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	return toRGBA(img, r.Intersect(img.Bounds()))
}

func pixelAt(img *image.RGBA, x, y int) [4]uint8 {
	i := img.PixOffset(x, y)
	return [4]uint8(img.Pix[i : i+4])
}

// similar reports whether pixel p counts as background colour bg.
func similar(p, bg [4]uint8, tolerance int) bool {
	if p[3] == 0 {
		return true
	}
	for i := range p {
		d := int(p[i]) - int(bg[i])
		if d < -tolerance || d > tolerance {
			return false
		}
	}
	return true
}
