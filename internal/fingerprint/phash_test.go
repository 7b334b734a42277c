package fingerprint

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int, vertical bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / w)
			if vertical {
				v = uint8(y * 255 / h)
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func checker(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x/cell+y/cell)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestPHashIdenticalImages(t *testing.T) {
	var p PHash
	a, err := p.Fingerprint(gradient(128, 96, false))
	require.NoError(t, err)
	b, err := p.Fingerprint(gradient(128, 96, false))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 0, p.Distance(a, b))
}

func TestPHashDifferentImages(t *testing.T) {
	var p PHash
	a, err := p.Fingerprint(gradient(128, 96, false))
	require.NoError(t, err)
	b, err := p.Fingerprint(checker(128, 96, 16))
	require.NoError(t, err)

	d := p.Distance(a, b)
	assert.Greater(t, d, 0)
	assert.LessOrEqual(t, d, 64)
	assert.Equal(t, d, p.Distance(b, a))
}

func TestPHashNilImage(t *testing.T) {
	_, err := PHash{}.Fingerprint(nil)
	assert.Error(t, err)
}
