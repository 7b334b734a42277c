package pipeline

import (
	"fmt"
	"time"

	"github.com/keagan/snapsift/internal/config"
	"github.com/keagan/snapsift/internal/persist"
	"github.com/keagan/snapsift/internal/scene"
	"github.com/keagan/snapsift/internal/selection"
	"github.com/keagan/snapsift/internal/shots"
	"github.com/keagan/snapsift/internal/video"
)

// Status tells a run that produced screenshots from one that legitimately found none
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
)

func (s Status) String() string {
	if s == StatusEmpty {
		return "empty"
	}
	return "ok"
}

// EmptyReason explains an empty result
type EmptyReason string

const (
	ReasonNone          EmptyReason = ""
	ReasonNoTransitions EmptyReason = "no scene transitions detected"
	ReasonNoCandidates  EmptyReason = "no stable candidate frames"
)

// Result is the outcome of one extraction
type Result struct {
	RunID  string
	Input  string
	Video  video.Info
	Status Status
	Reason EmptyReason

	Transitions int
	// Candidates are every scored candidate in discovery order
	Candidates []shots.Scored
	// Selected is the chosen subset in chronological order
	Selected    []shots.Scored
	Screenshots []shots.Screenshot
	OutputDir   string
	Elapsed     time.Duration
}

// Stage names a step of the extraction for progress reporting
type Stage string

const (
	StageScan      Stage = "scanning"
	StageStability Stage = "settling"
	StageOCR       Stage = "reading text"
	StageSave      Stage = "saving"
)

// ProgressFunc receives per-stage progress. It may be called from several goroutines.
type ProgressFunc func(stage Stage, done, total int)

// Options holds everything an extraction needs besides its collaborators
type Options struct {
	OutputDir string
	Timeout   time.Duration

	Scale     scene.Downscaler
	Detection scene.DetectorConfig
	Stability scene.StabilityConfig
	// Workers is the number of independent decode handles used to settle transitions
	Workers int

	MinConfidence  float64
	DropOnOCRError bool

	Selection selection.Options
	Output    persist.Options
}

// OptionsFromConfig translates application configuration into pipeline options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	strategy, err := selection.ParseStrategy(cfg.Selection.Strategy)
	if err != nil {
		return Options{}, err
	}
	format, err := persist.ParseFormat(cfg.Output.Format)
	if err != nil {
		return Options{}, err
	}
	if cfg.Detection.ProcessWidth < 0 || cfg.Detection.ProcessHeight < 0 {
		return Options{}, fmt.Errorf("negative processing resolution")
	}

	return Options{
		OutputDir: cfg.OutputDir,
		Timeout:   cfg.Timeout,
		Scale: scene.Downscaler{
			Width:  uint(cfg.Detection.ProcessWidth),
			Height: uint(cfg.Detection.ProcessHeight),
		},
		Detection: scene.DetectorConfig{
			Threshold:             cfg.Detection.TransitionThreshold,
			SampleIntervalSeconds: cfg.Detection.SampleIntervalSeconds,
		},
		Stability: scene.StabilityConfig{
			WindowStartSeconds: cfg.Stability.WindowStartSeconds,
			WindowEndSeconds:   cfg.Stability.WindowEndSeconds,
		},
		Workers:        max(1, cfg.Stability.Workers),
		MinConfidence:  cfg.OCR.MinConfidence,
		DropOnOCRError: cfg.OCR.OnError == config.OnErrorDrop,
		Selection: selection.Options{
			TargetCount:       cfg.Selection.TargetCount,
			MinSpacingSeconds: cfg.Selection.MinSpacingSeconds,
			Strategy:          strategy,
		},
		Output: persist.Options{
			Format:      format,
			JPEGQuality: cfg.Output.JPEGQuality,
		},
	}, nil
}
