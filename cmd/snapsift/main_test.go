package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keagan/snapsift/internal/config"
	"github.com/keagan/snapsift/internal/persist"
	"github.com/keagan/snapsift/internal/shots"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	addExtractFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestExtractFlagDefaults(t *testing.T) {
	f := extractCmd.Flags()
	for name, want := range map[string]string{
		"output":    "./output",
		"count":     "10",
		"threshold": "25",
		"interval":  "15",
	} {
		flag := f.Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, want, flag.DefValue, name)
	}
	assert.Equal(t, "i", f.Lookup("input").Shorthand)
	assert.Equal(t, "o", f.Lookup("output").Shorthand)
	assert.Equal(t, "c", f.Lookup("count").Shorthand)
	assert.Equal(t, "t", f.Lookup("threshold").Shorthand)
}

func TestApplyExtractFlagsOnlyChanged(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/from/config"
	cfg.Selection.TargetCount = 7

	flags := extractFlags(t, "-i", "demo.mp4", "-c", "4", "-t", "30", "--interval", "8.5",
		"--strategy", "optimal", "--timeout", "90s", "--workers", "2")
	require.NoError(t, applyExtractFlags(cfg, flags))

	assert.Equal(t, "/from/config", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Selection.TargetCount)
	assert.Equal(t, 30, cfg.Detection.TransitionThreshold)
	assert.Equal(t, 8.5, cfg.Selection.MinSpacingSeconds)
	assert.Equal(t, "optimal", cfg.Selection.Strategy)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Stability.Workers)
	require.NoError(t, cfg.Validate())
}

func TestApplyExtractFlagsOutput(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyExtractFlags(cfg, extractFlags(t, "-o", "shots", "--ocr", "none", "--format", "jpeg")))
	assert.Equal(t, "shots", cfg.OutputDir)
	assert.Equal(t, "none", cfg.OCR.Engine)
	assert.Equal(t, "jpeg", cfg.Output.Format)
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary([]shots.Screenshot{{
		Index:               1,
		Filename:            "01_00-11_score272.png",
		Timestamp:           11,
		Score:               272.5,
		TransitionMagnitude: 100,
		StabilityScore:      100,
		UIImportanceScore:   15,
	}})

	for _, want := range []string{"Transition", "00-11", "272.5", "100.0", "01_00-11_score272.png"} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasPrefix(out, "╭"))
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil))
}

func TestRenderValidation(t *testing.T) {
	out := renderValidation(persist.Report{
		Screenshots: []shots.Screenshot{
			{Index: 1, Filename: "a.png"},
			{Index: 2, Filename: "b.png"},
		},
		Missing: []string{"b.png"},
	})
	assert.Contains(t, out, "a.png")
	assert.Contains(t, out, "missing")
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapsift.yaml")
	require.NoError(t, initConfig(path, false))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	assert.Error(t, initConfig(path, false))
	require.NoError(t, os.WriteFile(path, []byte("output_dir: x\n"), 0644))
	require.NoError(t, initConfig(path, true))
}
