package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// TesseractOptions configures the tesseract CLI engine
type TesseractOptions struct {
	BinaryPath string
	Languages  []string
	PSM        int
}

// Tesseract runs the tesseract binary once per frame and parses its TSV output.
type Tesseract struct {
	logger    zerolog.Logger
	binary    string
	languages string
	psm       int
}

// NewTesseract resolves the tesseract binary
func NewTesseract(logger zerolog.Logger, opts TesseractOptions) (*Tesseract, error) {
	bin := opts.BinaryPath
	if bin == "" {
		bin = "tesseract"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract not found: %w", ErrEngineUnavailable, err)
	}

	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	psm := opts.PSM
	if psm <= 0 {
		psm = 11
	}

	t := &Tesseract{
		logger:    logger.With().Str("component", "ocr-tesseract").Logger(),
		binary:    path,
		languages: strings.Join(langs, "+"),
		psm:       psm,
	}
	t.logger.Debug().
		Str("binary", path).
		Str("languages", t.languages).
		Int("psm", psm).
		Msg("tesseract engine ready")
	return t, nil
}

// Detect recognises text lines in img
func (t *Tesseract) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var in bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary,
		"stdin", "stdout",
		"-l", t.languages,
		"--psm", strconv.Itoa(t.psm),
		"tsv",
	)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	detections, err := parseTSV(&out)
	if err != nil {
		return nil, err
	}
	t.logger.Debug().Int("lines", len(detections)).Msg("tesseract pass complete")
	return detections, nil
}

func (t *Tesseract) Close() error { return nil }

type lineKey struct {
	page, block, par, line int
}

type lineAcc struct {
	words []string
	conf  float64
	box   image.Rectangle
}

// parseTSV groups tesseract word rows into lines. Confidence is the mean word
// confidence scaled to 0..1 and the box is the union of the word boxes.
func parseTSV(r io.Reader) ([]Detection, error) {
	lines := make(map[lineKey]*lineAcc)
	var order []lineKey

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.SplitN(sc.Text(), "\t", 12)
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 || text == "" {
			continue
		}

		// page block par line word left top width height
		var n [9]int
		for i := range n {
			v, err := strconv.Atoi(cols[i+1])
			if err != nil {
				return nil, fmt.Errorf("tesseract tsv: column %d: %w", i+2, err)
			}
			n[i] = v
		}
		key := lineKey{page: n[0], block: n[1], par: n[2], line: n[3]}
		box := image.Rect(n[5], n[6], n[5]+n[7], n[6]+n[8])

		acc, ok := lines[key]
		if !ok {
			acc = &lineAcc{box: box}
			lines[key] = acc
			order = append(order, key)
		} else {
			acc.box = acc.box.Union(box)
		}
		acc.words = append(acc.words, text)
		acc.conf += conf
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tesseract output: %w", err)
	}

	out := make([]Detection, 0, len(order))
	for _, key := range order {
		acc := lines[key]
		out = append(out, Detection{
			Box:        acc.box,
			Text:       joinWords(acc.words),
			Confidence: acc.conf / float64(len(acc.words)) / 100,
		})
	}
	return out, nil
}

// joinWords joins with spaces, except between two non-ASCII words: tesseract
// splits CJK text into single glyphs that must stay together.
func joinWords(words []string) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(words[i-1])
			next, _ := utf8.DecodeRuneInString(w)
			if prev < utf8.RuneSelf || next < utf8.RuneSelf {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w)
	}
	return b.String()
}
