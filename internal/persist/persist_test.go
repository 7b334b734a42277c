package persist

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/keagan/snapsift/internal/shots"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 20), B: 90, A: 255})
		}
	}
	return img
}

func scored(ts, score float64, texts ...string) shots.Scored {
	return shots.Scored{
		Candidate: shots.Candidate{
			FrameIndex: int(ts * 30),
			Timestamp:  ts,
			Magnitude:  30,
			Stability:  97.5,
			Image:      testImage(),
		},
		Importance: shots.UIImportance{
			Score:    15,
			Elements: []shots.Element{{Kind: shots.KindButton, Text: "ホーム", Confidence: 0.9}},
			Texts:    texts,
		},
		Score: score,
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "01_00-05_score131.png", Filename(1, 5.2, 131.4, FormatPNG))
	assert.Equal(t, "12_02-05_score90.jpg", Filename(12, 125.9, 89.6, FormatJPEG))
	assert.Equal(t, "03_61-40_score0.png", Filename(3, 3700, 0, FormatPNG))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	f, err = ParseFormat("jpg")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)

	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestWriteImagePNGIsLossless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	img := testImage()
	require.NoError(t, WriteImage(img, path, DefaultOptions()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, img.Bounds(), decoded.Bounds())
	r1, g1, b1, _ := img.At(7, 3).RGBA()
	r2, g2, b2, _ := decoded.At(7, 3).RGBA()
	assert.Equal(t, []uint32{r1, g1, b1}, []uint32{r2, g2, b2})
}

func TestWriteImageJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.jpg")
	require.NoError(t, WriteImage(testImage(), path, Options{Format: FormatJPEG, JPEGQuality: 80}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 9, cfg.Height)
}

func TestWriterSaveAndValidate(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(zerolog.Nop(), dir, DefaultOptions())

	saved, err := w.Save(context.Background(), []shots.Scored{
		scored(5, 131.25, "ホーム", "<b>News</b>"),
		scored(20.5, 98, "Title"),
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, 1, saved[0].Index)
	assert.Equal(t, "01_00-05_score131.png", saved[0].Filename)
	assert.Equal(t, 2, saved[1].Index)
	assert.Equal(t, "02_00-20_score98.png", saved[1].Filename)

	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	// unescaped UTF-8 and HTML, two-space indent
	assert.Contains(t, string(raw), `"ホーム"`)
	assert.Contains(t, string(raw), `"<b>News</b>"`)
	assert.Contains(t, string(raw), "\n  {\n    \"index\": 1,")

	report, err := Validate(dir)
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
	require.Len(t, report.Screenshots, 2)
	assert.Equal(t, saved, report.Screenshots)
}

func TestWriterSaveIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(zerolog.Nop(), dir, DefaultOptions())
	in := []shots.Scored{scored(5, 100), scored(40, 90)}

	_, err := w.Save(context.Background(), in)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)

	_, err = w.Save(context.Background(), in)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	entries, err := os.ReadDir(filepath.Join(dir, ScreenshotsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestValidateMissingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteMetadata([]shots.Screenshot{
		{Index: 1, Filename: "01_00-05_score100.png"},
	}, filepath.Join(dir, MetadataFile)))

	report, err := Validate(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"01_00-05_score100.png"}, report.Missing)
}

func TestValidateErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Validate(dir)
	assert.ErrorIs(t, err, ErrMetadataMissing)

	path := filepath.Join(dir, MetadataFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"index": 1}`), 0644))
	_, err = Validate(dir)
	assert.ErrorIs(t, err, ErrMetadataInvalid)

	require.NoError(t, os.WriteFile(path, []byte(`[{"index": "one"}]`), 0644))
	_, err = Validate(dir)
	assert.ErrorIs(t, err, ErrMetadataInvalid)

	require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0644))
	_, err = Validate(dir)
	assert.ErrorIs(t, err, ErrMetadataEmpty)
}
