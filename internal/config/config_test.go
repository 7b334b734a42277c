package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25, cfg.Detection.TransitionThreshold)
	assert.Equal(t, 15.0, cfg.Selection.MinSpacingSeconds)
	assert.Equal(t, 10, cfg.Selection.TargetCount)
	assert.Equal(t, 0.3, cfg.OCR.MinConfidence)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapsift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: /tmp/shots
timeout: 90s
detection:
  transition_threshold: 30
selection:
  target_count: 4
  strategy: optimal
ocr:
  engine: none
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/shots", cfg.OutputDir)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 30, cfg.Detection.TransitionThreshold)
	assert.Equal(t, 4, cfg.Selection.TargetCount)
	assert.Equal(t, "optimal", cfg.Selection.Strategy)
	assert.Equal(t, "none", cfg.OCR.Engine)
	// untouched keys keep their defaults
	assert.Equal(t, 0.5, cfg.Detection.SampleIntervalSeconds)
	assert.Equal(t, []string{"jpn", "eng"}, cfg.OCR.Tesseract.Languages)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().OutputDir, cfg.OutputDir)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection: [1, 2"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SNAPSIFT_OUTPUT_DIR", "/env/out")
	t.Setenv("SNAPSIFT_DETECTION_TRANSITION_THRESHOLD", "12")
	t.Setenv("SNAPSIFT_OCR_ON_ERROR", "drop")
	t.Setenv("SNAPSIFT_OCR_TESSERACT_LANGUAGES", "eng,deu")
	t.Setenv("SNAPSIFT_TIMEOUT", "2m")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/env/out", cfg.OutputDir)
	assert.Equal(t, 12, cfg.Detection.TransitionThreshold)
	assert.Equal(t, OnErrorDrop, cfg.OCR.OnError)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Tesseract.Languages)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("SNAPSIFT_SELECTION_TARGET_COUNT", "ten")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Timeout = 5 * time.Minute
	cfg.Output.Format = "jpeg"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Detection.SampleIntervalSeconds = 0
	cfg.Stability.WindowEndSeconds = 0.25
	cfg.OCR.OnError = "explode"
	cfg.Selection.TargetCount = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"sample_interval_seconds", "window_end_seconds", "on_error", "target_count"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidateProcessSize(t *testing.T) {
	cfg := Default()
	cfg.Detection.ProcessWidth = 0
	cfg.Detection.ProcessHeight = 0
	assert.NoError(t, cfg.Validate())

	cfg.Detection.ProcessHeight = 720
	assert.Error(t, cfg.Validate())
}

func TestContext(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))

	cfg := Default()
	cfg.OutputDir = "elsewhere"
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
