package video

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrEndOfStream is returned by ReadNext once no more frames can be decoded.
	ErrEndOfStream = errors.New("end of stream")
	// ErrOpen reports a video that could not be opened or probed.
	ErrOpen = errors.New("cannot open video")
	// ErrNoFrames reports a video that opened but carries no decodable frames.
	ErrNoFrames = errors.New("video has no frames")
)

// Info describes a video stream. It is fixed once the source is opened.
type Info struct {
	Path        string
	FPS         float64
	TotalFrames int
	Width       int
	Height      int
	Codec       string
}

// DurationSeconds is TotalFrames/FPS.
func (i Info) DurationSeconds() float64 {
	if i.FPS <= 0 {
		return 0
	}
	return float64(i.TotalFrames) / i.FPS
}

// Timestamp converts a frame index to seconds.
func (i Info) Timestamp(frameIndex int) float64 {
	if i.FPS <= 0 {
		return 0
	}
	return float64(frameIndex) / i.FPS
}

// Frame is one decoded picture at full source resolution.
type Frame struct {
	Index int
	Image *image.RGBA
}

// Source is a forward reader over the frames of one video with a repositionable cursor.
// A Source is not safe for concurrent use.
type Source interface {
	Info() Info
	// Seek positions the cursor so the next ReadNext returns frame index.
	Seek(ctx context.Context, index int) error
	// ReadNext returns the frame under the cursor and advances it. It returns
	// ErrEndOfStream once the stream is exhausted.
	ReadNext(ctx context.Context) (Frame, error)
	Close() error
}

// Opener opens independent sources over the same kind of input. Each call returns
// a new decode handle.
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Source, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, path string) (Source, error) {
	return f(ctx, path)
}
