// Package ocr recognises on-screen text in frames.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"
)

// ErrEngineUnavailable reports an engine whose binary, library or model is missing.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Detection is one recognised text region
type Detection struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// Engine recognises text in a frame. Engines hold external resources and must be
// closed; a single engine may be shared by concurrent callers.
type Engine interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

const (
	EngineTesseract = "tesseract"
	EngineONNX      = "onnx"
	EngineNone      = "none"
)

// Options selects and configures an engine
type Options struct {
	Engine    string
	Tesseract TesseractOptions
	ONNX      ONNXOptions
}

// Open creates the engine named by opts.Engine
func Open(logger zerolog.Logger, opts Options) (Engine, error) {
	switch opts.Engine {
	case EngineTesseract:
		return NewTesseract(logger, opts.Tesseract)
	case EngineONNX:
		return NewONNX(logger, opts.ONNX)
	case EngineNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", opts.Engine)
	}
}

// None never detects anything
type None struct{}

func (None) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return nil, ctx.Err()
}

func (None) Close() error { return nil }
