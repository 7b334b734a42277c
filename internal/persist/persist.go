// Package persist writes selected screenshots and their metadata to disk and reads
// them back.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/keagan/snapsift/internal/shots"
	"github.com/keagan/snapsift/pkg/util"
	"github.com/rs/zerolog"
)

const (
	MetadataFile   = "metadata.json"
	ScreenshotsDir = "screenshots"
)

var (
	ErrMetadataMissing = errors.New("metadata file not found")
	ErrMetadataInvalid = errors.New("metadata is not a JSON array of screenshots")
	ErrMetadataEmpty   = errors.New("metadata lists no screenshots")
)

// Format is an image encoding
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "png", "":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unknown image format %q", s)
	}
}

// Ext is the file extension without the dot
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Options control image encoding
type Options struct {
	Format      Format
	JPEGQuality int
}

func DefaultOptions() Options {
	return Options{Format: FormatPNG, JPEGQuality: 95}
}

// Filename is "{rank:02}_{MM-SS}_score{round(score)}.{ext}".
func Filename(rank int, timestamp, score float64, f Format) string {
	return fmt.Sprintf("%02d_%s_score%.0f.%s", rank, util.FormatClock(timestamp), score, f.Ext())
}

// WriteImage encodes img to path
func WriteImage(img image.Image, path string, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	switch opts.Format {
	case FormatJPEG:
		quality := opts.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
	default:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		err = enc.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// WriteMetadata writes the screenshot list as indented UTF-8 JSON
func WriteMetadata(list []shots.Screenshot, path string) error {
	if list == nil {
		list = []shots.Screenshot{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads a metadata file. An empty array is returned as-is; use
// Validate to reject it.
func LoadMetadata(path string) ([]shots.Screenshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMetadataMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s", ErrMetadataInvalid, path)
	}
	var list []shots.Screenshot
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataInvalid, err)
	}
	return list, nil
}

// Report is the outcome of validating an output directory
type Report struct {
	Screenshots []shots.Screenshot
	// Missing lists screenshot files named in the metadata but absent on disk
	Missing []string
}

// Validate loads dir's metadata and checks that every screenshot file exists.
// Missing files are reported, not treated as errors.
func Validate(dir string) (Report, error) {
	list, err := LoadMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return Report{}, err
	}
	if len(list) == 0 {
		return Report{}, ErrMetadataEmpty
	}

	report := Report{Screenshots: list}
	for _, shot := range list {
		if !util.FileExists(ScreenshotPath(dir, shot.Filename)) {
			report.Missing = append(report.Missing, shot.Filename)
		}
	}
	return report, nil
}

// ScreenshotPath is where a screenshot file lives inside an output directory
func ScreenshotPath(dir, filename string) string {
	return filepath.Join(dir, ScreenshotsDir, filename)
}

// Writer saves one run's selection into an output directory
type Writer struct {
	logger zerolog.Logger
	dir    string
	opts   Options
}

func NewWriter(logger zerolog.Logger, dir string, opts Options) *Writer {
	return &Writer{
		logger: logger.With().Str("component", "persist").Logger(),
		dir:    dir,
		opts:   opts,
	}
}

// Dir is the output directory
func (w *Writer) Dir() string { return w.dir }

// Save writes every selected candidate, ranked 1..N in the given order, followed by
// the metadata file. selected must already be in chronological order.
func (w *Writer) Save(ctx context.Context, selected []shots.Scored) ([]shots.Screenshot, error) {
	if err := util.EnsureDir(filepath.Join(w.dir, ScreenshotsDir)); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	set := shots.NewSet()
	for i, s := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shot := shots.NewScreenshot(i+1, s)
		shot.Filename = Filename(shot.Index, s.Timestamp, s.Score, w.opts.Format)

		if err := WriteImage(s.Image, ScreenshotPath(w.dir, shot.Filename), w.opts); err != nil {
			return nil, err
		}
		w.logger.Debug().
			Int("index", shot.Index).
			Str("file", shot.Filename).
			Float64("score", shot.Score).
			Msg("screenshot saved")
		set.Add(shot)
	}

	path := filepath.Join(w.dir, MetadataFile)
	if err := WriteMetadata(set.All(), path); err != nil {
		return nil, err
	}
	w.logger.Info().Str("path", path).Int("screenshots", set.Len()).Msg("metadata saved")
	return set.All(), nil
}
