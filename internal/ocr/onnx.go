package ocr

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXOptions configures the PaddleOCR-style ONNX engine
type ONNXOptions struct {
	LibraryPath  string
	DetModel     string
	RecModel     string
	DictPath     string
	DetLimitSide int
	DetThreshold float64
	BoxThreshold float64
}

// ONNX runs a DB text detector followed by a CTC recogniser through onnxruntime.
type ONNX struct {
	logger zerolog.Logger
	opts   ONNXOptions
	dict   []string

	// sessions are not reentrant
	mu  sync.Mutex
	det *ort.DynamicAdvancedSession
	rec *ort.DynamicAdvancedSession
}

// NewONNX loads both models and the character dictionary
func NewONNX(logger zerolog.Logger, opts ONNXOptions) (*ONNX, error) {
	for _, path := range []string{opts.DetModel, opts.RecModel, opts.DictPath} {
		if path == "" {
			return nil, fmt.Errorf("%w: onnx engine needs det_model, rec_model and dict_path", ErrEngineUnavailable)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
		}
	}
	if opts.DetLimitSide <= 0 {
		opts.DetLimitSide = 960
	}
	if opts.DetThreshold <= 0 {
		opts.DetThreshold = 0.3
	}
	if opts.BoxThreshold <= 0 {
		opts.BoxThreshold = 0.6
	}

	dict, err := loadDict(opts.DictPath)
	if err != nil {
		return nil, err
	}

	if !ort.IsInitialized() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX runtime: %w", ErrEngineUnavailable, err)
		}
	}

	det, err := newSession(opts.DetModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector session: %w", err)
	}
	rec, err := newSession(opts.RecModel)
	if err != nil {
		det.Destroy()
		return nil, fmt.Errorf("failed to create recognizer session: %w", err)
	}

	logger.Info().
		Str("det_model", opts.DetModel).
		Str("rec_model", opts.RecModel).
		Int("dict_size", len(dict)).
		Msg("ONNX OCR models loaded")

	return &ONNX{
		logger: logger.With().Str("component", "ocr-onnx").Logger(),
		opts:   opts,
		dict:   dict,
		det:    det,
		rec:    rec,
	}, nil
}

// newSession opens a model using its own first input and output names.
func newSession(path string) (*ort.DynamicAdvancedSession, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", path)
	}
	return ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		nil,
	)
}

// Detect finds text boxes and recognises each of them
func (o *ONNX) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	boxes, err := o.detect(img)
	if err != nil {
		return nil, err
	}

	out := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, conf, err := o.recognize(img, box)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		out = append(out, Detection{Box: box, Text: text, Confidence: conf})
	}

	o.logger.Debug().
		Int("boxes", len(boxes)).
		Int("texts", len(out)).
		Msg("onnx pass complete")
	return out, nil
}

func (o *ONNX) detect(img image.Image) ([]image.Rectangle, error) {
	b := img.Bounds()
	w, h := detectorSize(b.Dx(), b.Dy(), o.opts.DetLimitSide)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), detectorInput(img, w, h))
	if err != nil {
		return nil, fmt.Errorf("failed to create detector tensor: %w", err)
	}
	defer input.Destroy()

	probs, shape, err := o.run(o.det, input)
	if err != nil {
		return nil, fmt.Errorf("text detection failed: %w", err)
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("unexpected detector output shape %v", shape)
	}
	mh, mw := int(shape[2]), int(shape[3])

	boxes := boxesFromMap(probs, mw, mh, o.opts.DetThreshold, o.opts.BoxThreshold)
	sx := float64(b.Dx()) / float64(mw)
	sy := float64(b.Dy()) / float64(mh)
	for i, box := range boxes {
		boxes[i] = scaleBox(box, sx, sy).Add(b.Min).Intersect(b)
	}
	return boxes, nil
}

func (o *ONNX) recognize(img image.Image, box image.Rectangle) (string, float64, error) {
	if box.Empty() {
		return "", 0, nil
	}
	w := recognizerWidth(box.Dx(), box.Dy())
	input, err := ort.NewTensor(ort.NewShape(1, 3, recHeight, int64(w)), recognizerInput(img, box, w))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create recognizer tensor: %w", err)
	}
	defer input.Destroy()

	probs, shape, err := o.run(o.rec, input)
	if err != nil {
		return "", 0, fmt.Errorf("text recognition failed: %w", err)
	}
	if len(shape) != 3 {
		return "", 0, fmt.Errorf("unexpected recognizer output shape %v", shape)
	}

	text, conf := ctcDecode(probs, int(shape[1]), int(shape[2]), o.dict)
	return text, conf, nil
}

// run executes a session with an output allocated by onnxruntime and copies
// the result out before releasing it.
func (o *ONNX) run(sess *ort.DynamicAdvancedSession, input ort.Value) ([]float32, ort.Shape, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	outputs := []ort.Value{nil}
	if err := sess.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, err
	}
	defer outputs[0].Destroy()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	data := append([]float32(nil), t.GetData()...)
	return data, t.GetShape().Clone(), nil
}

// Close releases both sessions. The runtime environment is process-wide and
// stays initialized.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger.Debug().Msg("closing ONNX OCR sessions")
	var firstErr error
	for _, sess := range []*ort.DynamicAdvancedSession{o.det, o.rec} {
		if sess == nil {
			continue
		}
		if err := sess.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.det, o.rec = nil, nil
	return firstErr
}

// loadDict reads one character per line. Index 0 of the model output is the CTC
// blank, so dict[i-1] is class i; a trailing space class is appended.
func loadDict(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	defer f.Close()

	var dict []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		dict = append(dict, strings.TrimRight(sc.Text(), "\r\n"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return append(dict, " "), nil
}
