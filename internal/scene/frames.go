package scene

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// Downscaler resizes frames to the fixed processing resolution so that hashing and
// differencing cost and results do not depend on the source resolution.
type Downscaler struct {
	Width  uint
	Height uint
}

// Apply returns img resized to the processing resolution. A zero size disables scaling.
func (s Downscaler) Apply(img *image.RGBA) *image.RGBA {
	if s.Width == 0 || s.Height == 0 {
		return img
	}
	b := img.Bounds()
	if uint(b.Dx()) == s.Width && uint(b.Dy()) == s.Height {
		return img
	}
	return toRGBA(resize.Resize(s.Width, s.Height, img, resize.Bilinear))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// MeanAbsDiff is the mean absolute difference over the R, G and B samples of two
// equally sized frames, in 0..255. Alpha is ignored.
func MeanAbsDiff(a, b *image.RGBA) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	if w != bb.Dx() || h != bb.Dy() || w == 0 || h == 0 {
		return 255
	}

	var sum uint64
	for y := 0; y < h; y++ {
		oa := a.PixOffset(ab.Min.X, ab.Min.Y+y)
		ob := b.PixOffset(bb.Min.X, bb.Min.Y+y)
		ra := a.Pix[oa : oa+w*4]
		rb := b.Pix[ob : ob+w*4]
		for i := 0; i < len(ra); i += 4 {
			sum += absDiff(ra[i], rb[i])
			sum += absDiff(ra[i+1], rb[i+1])
			sum += absDiff(ra[i+2], rb[i+2])
		}
	}
	return float64(sum) / float64(w*h*3)
}

func absDiff(x, y uint8) uint64 {
	if x > y {
		return uint64(x - y)
	}
	return uint64(y - x)
}
