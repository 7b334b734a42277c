package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix prefixes every environment override
const EnvPrefix = "SNAPSIFT_"

// Config holds all application configuration
type Config struct {
	// Core settings
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
	// Timeout bounds the wall time of one extraction; zero disables it.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Detection DetectionConfig `yaml:"detection" envPrefix:"DETECTION_"`
	Stability StabilityConfig `yaml:"stability" envPrefix:"STABILITY_"`
	OCR       OCRConfig       `yaml:"ocr" envPrefix:"OCR_"`
	Selection SelectionConfig `yaml:"selection" envPrefix:"SELECTION_"`
	Output    OutputConfig    `yaml:"output" envPrefix:"OUTPUT_"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path" env:"BINARY_PATH"`
	ProbePath  string `yaml:"probe_path" env:"PROBE_PATH"`
	Threads    int    `yaml:"threads" env:"THREADS"`
}

type DetectionConfig struct {
	TransitionThreshold   int     `yaml:"transition_threshold" env:"TRANSITION_THRESHOLD"`
	SampleIntervalSeconds float64 `yaml:"sample_interval_seconds" env:"SAMPLE_INTERVAL_SECONDS"`
	ProcessWidth          int     `yaml:"process_width" env:"PROCESS_WIDTH"`
	ProcessHeight         int     `yaml:"process_height" env:"PROCESS_HEIGHT"`
}

type StabilityConfig struct {
	WindowStartSeconds float64 `yaml:"window_start_seconds" env:"WINDOW_START_SECONDS"`
	WindowEndSeconds   float64 `yaml:"window_end_seconds" env:"WINDOW_END_SECONDS"`
	Workers            int     `yaml:"workers" env:"WORKERS"`
}

type OCRConfig struct {
	Engine        string          `yaml:"engine" env:"ENGINE"`
	MinConfidence float64         `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	OnError       string          `yaml:"on_error" env:"ON_ERROR"`
	Tesseract     TesseractConfig `yaml:"tesseract" envPrefix:"TESSERACT_"`
	ONNX          ONNXConfig      `yaml:"onnx" envPrefix:"ONNX_"`
}

type TesseractConfig struct {
	BinaryPath string   `yaml:"binary_path" env:"BINARY_PATH"`
	Languages  []string `yaml:"languages" env:"LANGUAGES"`
	PSM        int      `yaml:"psm" env:"PSM"`
}

type ONNXConfig struct {
	LibraryPath  string  `yaml:"library_path" env:"LIBRARY_PATH"`
	DetModel     string  `yaml:"det_model" env:"DET_MODEL"`
	RecModel     string  `yaml:"rec_model" env:"REC_MODEL"`
	DictPath     string  `yaml:"dict_path" env:"DICT_PATH"`
	DetLimitSide int     `yaml:"det_limit_side" env:"DET_LIMIT_SIDE"`
	DetThreshold float64 `yaml:"det_threshold" env:"DET_THRESHOLD"`
	BoxThreshold float64 `yaml:"box_threshold" env:"BOX_THRESHOLD"`
}

type SelectionConfig struct {
	TargetCount       int     `yaml:"target_count" env:"TARGET_COUNT"`
	MinSpacingSeconds float64 `yaml:"min_spacing_seconds" env:"MIN_SPACING_SECONDS"`
	Strategy          string  `yaml:"strategy" env:"STRATEGY"`
}

type OutputConfig struct {
	Format      string `yaml:"format" env:"FORMAT"`
	JPEGQuality int    `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
}

const (
	OnErrorZero = "zero"
	OnErrorDrop = "drop"
)

// Load reads configuration from file or returns defaults, then applies
// environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.OutputDir != "", "output_dir must be set")
	check(c.Timeout >= 0, "timeout must not be negative")
	check(c.FFmpeg.Threads >= 0, "ffmpeg.threads must not be negative")

	d := c.Detection
	check(d.TransitionThreshold >= 0, "detection.transition_threshold must not be negative")
	check(d.SampleIntervalSeconds > 0, "detection.sample_interval_seconds must be positive")
	check(d.ProcessWidth >= 0 && d.ProcessHeight >= 0, "detection.process_width and process_height must not be negative")
	check((d.ProcessWidth == 0) == (d.ProcessHeight == 0), "detection.process_width and process_height must both be set or both be 0")

	s := c.Stability
	check(s.WindowStartSeconds >= 0, "stability.window_start_seconds must not be negative")
	check(s.WindowEndSeconds > s.WindowStartSeconds, "stability.window_end_seconds must be after window_start_seconds")
	check(s.Workers >= 1, "stability.workers must be at least 1")

	o := c.OCR
	switch o.Engine {
	case "tesseract", "onnx", "none":
	default:
		check(false, "ocr.engine must be tesseract, onnx or none, got %q", o.Engine)
	}
	check(o.MinConfidence >= 0 && o.MinConfidence <= 1, "ocr.min_confidence must be within [0, 1]")
	check(o.OnError == OnErrorZero || o.OnError == OnErrorDrop, "ocr.on_error must be %q or %q, got %q", OnErrorZero, OnErrorDrop, o.OnError)

	sel := c.Selection
	check(sel.TargetCount >= 1, "selection.target_count must be at least 1")
	check(sel.MinSpacingSeconds >= 0, "selection.min_spacing_seconds must not be negative")
	check(sel.Strategy == "greedy" || sel.Strategy == "optimal", "selection.strategy must be greedy or optimal, got %q", sel.Strategy)

	out := c.Output
	check(out.Format == "png" || out.Format == "jpeg" || out.Format == "jpg", "output.format must be png or jpeg, got %q", out.Format)
	check(out.JPEGQuality >= 1 && out.JPEGQuality <= 100, "output.jpeg_quality must be within [1, 100]")

	return errors.Join(errs...)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		OutputDir: "./output",
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Detection: DetectionConfig{
			TransitionThreshold:   25,
			SampleIntervalSeconds: 0.5,
			ProcessWidth:          1280,
			ProcessHeight:         720,
		},
		Stability: StabilityConfig{
			WindowStartSeconds: 0.5,
			WindowEndSeconds:   1.5,
			Workers:            1,
		},
		OCR: OCRConfig{
			Engine:        "tesseract",
			MinConfidence: 0.3,
			OnError:       OnErrorZero,
			Tesseract: TesseractConfig{
				BinaryPath: "tesseract",
				Languages:  []string{"jpn", "eng"},
				PSM:        11,
			},
			ONNX: ONNXConfig{
				DetLimitSide: 960,
				DetThreshold: 0.3,
				BoxThreshold: 0.6,
			},
		},
		Selection: SelectionConfig{
			TargetCount:       10,
			MinSpacingSeconds: 15,
			Strategy:          "greedy",
		},
		Output: OutputConfig{
			Format:      "png",
			JPEGQuality: 95,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./snapsift.yaml",
		"./snapsift.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".snapsift", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
