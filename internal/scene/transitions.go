package scene

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/keagan/snapsift/internal/fingerprint"
	"github.com/keagan/snapsift/internal/video"
	"github.com/keagan/snapsift/pkg/util"
	"github.com/rs/zerolog"
)

// ErrContractViolation marks a collaborator that broke its contract, such as a
// negative fingerprint distance or a malformed timestamp. It is not recoverable.
var ErrContractViolation = errors.New("collaborator contract violation")

// TransitionEvent is a sampled frame whose fingerprint jumped away from the previous sample.
type TransitionEvent struct {
	FrameIndex int
	Timestamp  float64
	Magnitude  int
}

// DetectorConfig configures transition detection
type DetectorConfig struct {
	// Threshold is the fingerprint distance that must be exceeded (strictly).
	Threshold int
	// SampleIntervalSeconds is the spacing between fingerprinted frames.
	SampleIntervalSeconds float64
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:             25,
		SampleIntervalSeconds: 0.5,
	}
}

// ScanState carries the previous sample's fingerprint between steps of a scan.
type ScanState struct {
	Previous    fingerprint.Hash
	HasPrevious bool
}

// ChangeDetector finds scene transitions in a frame stream
type ChangeDetector struct {
	logger   zerolog.Logger
	hasher   fingerprint.Func
	scale    Downscaler
	config   DetectorConfig
	progress func(frame, total int)
}

// NewChangeDetector creates a detector over the given fingerprint function
func NewChangeDetector(logger zerolog.Logger, hasher fingerprint.Func, scale Downscaler, cfg DetectorConfig) *ChangeDetector {
	return &ChangeDetector{
		logger: logger.With().Str("component", "change-detector").Logger(),
		hasher: hasher,
		scale:  scale,
		config: cfg,
	}
}

// OnProgress registers a callback invoked for every frame read during a scan.
func (d *ChangeDetector) OnProgress(fn func(frame, total int)) {
	d.progress = fn
}

// SampleStride returns how many frames apart fingerprinted samples are.
func (d *ChangeDetector) SampleStride(fps float64) int {
	return max(1, util.FramesFor(fps, d.config.SampleIntervalSeconds))
}

// Step folds one sampled fingerprint into state. The returned state always holds h;
// fired reports whether the sample is a transition.
func (d *ChangeDetector) Step(state ScanState, frameIndex int, timestamp float64, h fingerprint.Hash) (ScanState, TransitionEvent, bool, error) {
	if math.IsNaN(timestamp) || math.IsInf(timestamp, 0) || timestamp < 0 {
		return state, TransitionEvent{}, false, fmt.Errorf("%w: timestamp %v at frame %d", ErrContractViolation, timestamp, frameIndex)
	}

	next := ScanState{Previous: h, HasPrevious: true}
	if !state.HasPrevious {
		return next, TransitionEvent{}, false, nil
	}

	distance := d.hasher.Distance(state.Previous, h)
	if distance < 0 {
		return state, TransitionEvent{}, false, fmt.Errorf("%w: negative fingerprint distance %d at frame %d", ErrContractViolation, distance, frameIndex)
	}
	if distance <= d.config.Threshold {
		return next, TransitionEvent{}, false, nil
	}

	return next, TransitionEvent{
		FrameIndex: frameIndex,
		Timestamp:  timestamp,
		Magnitude:  distance,
	}, true, nil
}

// Transitions lazily scans src from its first frame and yields each transition in
// order. A read or fingerprint failure is yielded once and ends the sequence.
func (d *ChangeDetector) Transitions(ctx context.Context, src video.Source) iter.Seq2[TransitionEvent, error] {
	return func(yield func(TransitionEvent, error) bool) {
		info := src.Info()
		if err := src.Seek(ctx, 0); err != nil {
			yield(TransitionEvent{}, fmt.Errorf("seek to start: %w", err))
			return
		}

		stride := d.SampleStride(info.FPS)
		d.logger.Debug().
			Int("stride", stride).
			Int("threshold", d.config.Threshold).
			Msg("scanning for transitions")

		var state ScanState
		for {
			frame, err := src.ReadNext(ctx)
			if errors.Is(err, video.ErrEndOfStream) {
				return
			}
			if err != nil {
				yield(TransitionEvent{}, fmt.Errorf("read frame: %w", err))
				return
			}
			if d.progress != nil {
				d.progress(frame.Index+1, info.TotalFrames)
			}
			if frame.Index%stride != 0 {
				continue
			}

			h, err := d.hasher.Fingerprint(d.scale.Apply(frame.Image))
			if err != nil {
				yield(TransitionEvent{}, fmt.Errorf("fingerprint frame %d: %w", frame.Index, err))
				return
			}

			var (
				ev    TransitionEvent
				fired bool
			)
			state, ev, fired, err = d.Step(state, frame.Index, info.Timestamp(frame.Index), h)
			if err != nil {
				yield(TransitionEvent{}, err)
				return
			}
			if !fired {
				continue
			}

			d.logger.Debug().
				Int("frame", ev.FrameIndex).
				Float64("timestamp", ev.Timestamp).
				Int("magnitude", ev.Magnitude).
				Msg("transition detected")

			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Detect collects every transition in src. An empty slice with a nil error means the
// video has no transitions.
func (d *ChangeDetector) Detect(ctx context.Context, src video.Source) ([]TransitionEvent, error) {
	events := make([]TransitionEvent, 0)
	for ev, err := range d.Transitions(ctx, src) {
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	d.logger.Info().Int("transitions", len(events)).Msg("transition scan complete")
	return events, nil
}
