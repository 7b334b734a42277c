// Package videotest provides an in-memory video.Source for tests.
package videotest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/keagan/snapsift/internal/video"
)

// Source serves pre-built frames. Frames are returned as-is, so callers must not
// mutate them.
type Source struct {
	info   video.Info
	frames []*image.RGBA
	pos    int

	Seeks  []int
	Reads  int
	Closed bool
}

var _ video.Source = (*Source)(nil)

// New builds a source over frames at the given rate.
func New(fps float64, frames []*image.RGBA) *Source {
	info := video.Info{Path: "memory", FPS: fps, TotalFrames: len(frames)}
	if len(frames) > 0 {
		info.Width = frames[0].Bounds().Dx()
		info.Height = frames[0].Bounds().Dy()
	}
	return &Source{info: info, frames: frames}
}

// Opener returns an opener that hands out independent sources over the same frames.
func Opener(fps float64, frames []*image.RGBA) video.Opener {
	return video.OpenerFunc(func(ctx context.Context, path string) (video.Source, error) {
		return New(fps, frames), nil
	})
}

func (s *Source) Info() video.Info { return s.info }

func (s *Source) Seek(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("seek to negative frame %d", index)
	}
	s.Seeks = append(s.Seeks, index)
	s.pos = index
	return nil
}

func (s *Source) ReadNext(ctx context.Context) (video.Frame, error) {
	if err := ctx.Err(); err != nil {
		return video.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return video.Frame{}, video.ErrEndOfStream
	}
	f := video.Frame{Index: s.pos, Image: s.frames[s.pos]}
	s.pos++
	s.Reads++
	return f, nil
}

func (s *Source) Close() error {
	s.Closed = true
	return nil
}

// Solid returns a w×h frame filled with c.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// Gray is Solid with an opaque gray level.
func Gray(w, h int, level uint8) *image.RGBA {
	return Solid(w, h, color.RGBA{R: level, G: level, B: level, A: 255})
}

// Repeat returns n references to img.
func Repeat(img *image.RGBA, n int) []*image.RGBA {
	out := make([]*image.RGBA, n)
	for i := range out {
		out[i] = img
	}
	return out
}
