package scene

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/keagan/snapsift/internal/video"
	"github.com/keagan/snapsift/pkg/util"
	"github.com/rs/zerolog"
)

// StableFrame is the steadiest frame found in the settle window after a transition.
type StableFrame struct {
	FrameIndex int
	Timestamp  float64
	// Stability is 100 minus the mean absolute pixel difference to the previous
	// frame, so 100 means no motion at all.
	Stability float64
	// Image is the frame at full source resolution.
	Image *image.RGBA
}

// StabilityConfig bounds the settle window relative to the transition frame.
type StabilityConfig struct {
	WindowStartSeconds float64
	WindowEndSeconds   float64
}

func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		WindowStartSeconds: 0.5,
		WindowEndSeconds:   1.5,
	}
}

// StabilityLocator picks a representative frame after each transition
type StabilityLocator struct {
	logger zerolog.Logger
	scale  Downscaler
	config StabilityConfig
}

func NewStabilityLocator(logger zerolog.Logger, scale Downscaler, cfg StabilityConfig) *StabilityLocator {
	return &StabilityLocator{
		logger: logger.With().Str("component", "stability-locator").Logger(),
		scale:  scale,
		config: cfg,
	}
}

// Window returns the half-open frame range [start, end) searched after ev, clamped
// to the end of the video. start >= end means the window is empty.
func (l *StabilityLocator) Window(ev TransitionEvent, info video.Info) (start, end int) {
	start = ev.FrameIndex + util.FramesFor(info.FPS, l.config.WindowStartSeconds)
	end = ev.FrameIndex + util.FramesFor(info.FPS, l.config.WindowEndSeconds)
	return start, min(end, info.TotalFrames)
}

type settleState struct {
	prev *image.RGBA
	best *StableFrame
}

// step compares one window frame to its predecessor. The first pair seeds best;
// later frames replace it only when strictly steadier.
func (s settleState) step(frame video.Frame, small *image.RGBA, timestamp float64) settleState {
	next := settleState{prev: small, best: s.best}
	if s.prev == nil {
		return next
	}
	stability := 100 - MeanAbsDiff(s.prev, small)
	if s.best == nil || stability > s.best.Stability {
		next.best = &StableFrame{
			FrameIndex: frame.Index,
			Timestamp:  timestamp,
			Stability:  stability,
			Image:      frame.Image,
		}
	}
	return next
}

// Locate seeks src into the window after ev and returns its steadiest frame. It
// returns nil with a nil error when fewer than two frames could be read, which
// happens for transitions near the end of the video.
func (l *StabilityLocator) Locate(ctx context.Context, src video.Source, ev TransitionEvent) (*StableFrame, error) {
	info := src.Info()
	start, end := l.Window(ev, info)
	if end-start < 2 {
		l.logger.Debug().
			Int("transition", ev.FrameIndex).
			Int("start", start).
			Int("end", end).
			Msg("settle window too short")
		return nil, nil
	}

	if err := src.Seek(ctx, start); err != nil {
		return nil, fmt.Errorf("seek to frame %d: %w", start, err)
	}

	var state settleState
	for i := start; i < end; i++ {
		frame, err := src.ReadNext(ctx)
		if errors.Is(err, video.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", i, err)
		}
		state = state.step(frame, l.scale.Apply(frame.Image), info.Timestamp(frame.Index))
	}

	if state.best == nil {
		l.logger.Debug().Int("transition", ev.FrameIndex).Msg("settle window truncated")
		return nil, nil
	}

	l.logger.Debug().
		Int("transition", ev.FrameIndex).
		Int("frame", state.best.FrameIndex).
		Float64("stability", state.best.Stability).
		Msg("stable frame located")
	return state.best, nil
}
