package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/snapsift/internal/config"
	"github.com/keagan/snapsift/internal/ffmpeg"
	"github.com/keagan/snapsift/internal/fingerprint"
	"github.com/keagan/snapsift/internal/logging"
	"github.com/keagan/snapsift/internal/ocr"
	"github.com/keagan/snapsift/internal/persist"
	"github.com/keagan/snapsift/internal/scene"
	"github.com/keagan/snapsift/internal/scoring"
	"github.com/keagan/snapsift/internal/selection"
	"github.com/keagan/snapsift/internal/shots"
	"github.com/keagan/snapsift/internal/video"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators a pipeline drives
type Deps struct {
	Opener video.Opener
	Hasher fingerprint.Func
	OCR    ocr.Engine
}

// Pipeline orchestrates one extraction from video to saved screenshots
type Pipeline struct {
	logger   zerolog.Logger
	opts     Options
	deps     Deps
	progress ProgressFunc
}

// New creates a pipeline backed by ffmpeg, the perceptual hash and the configured
// OCR engine
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	ffmpegExec, err := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	engine, err := openOCR(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ocr: %w", err)
	}

	return NewWithDeps(logger, opts, Deps{
		Opener: ffmpegExec,
		Hasher: fingerprint.PHash{},
		OCR:    engine,
	}), nil
}

// openOCR opens the configured engine. A missing engine falls back to no OCR when
// failed reads are scored as zero.
func openOCR(logger zerolog.Logger, cfg *config.Config) (ocr.Engine, error) {
	engine, err := ocr.Open(logger, ocr.Options{
		Engine: cfg.OCR.Engine,
		Tesseract: ocr.TesseractOptions{
			BinaryPath: cfg.OCR.Tesseract.BinaryPath,
			Languages:  cfg.OCR.Tesseract.Languages,
			PSM:        cfg.OCR.Tesseract.PSM,
		},
		ONNX: ocr.ONNXOptions{
			LibraryPath:  cfg.OCR.ONNX.LibraryPath,
			DetModel:     cfg.OCR.ONNX.DetModel,
			RecModel:     cfg.OCR.ONNX.RecModel,
			DictPath:     cfg.OCR.ONNX.DictPath,
			DetLimitSide: cfg.OCR.ONNX.DetLimitSide,
			DetThreshold: cfg.OCR.ONNX.DetThreshold,
			BoxThreshold: cfg.OCR.ONNX.BoxThreshold,
		},
	})
	if errors.Is(err, ocr.ErrEngineUnavailable) && cfg.OCR.OnError == config.OnErrorZero {
		logger.Warn().Err(err).Str("engine", cfg.OCR.Engine).Msg("ocr engine unavailable, continuing without text detection")
		return ocr.None{}, nil
	}
	return engine, err
}

// NewWithDeps creates a pipeline over explicit collaborators. The pipeline takes
// ownership of deps.OCR.
func NewWithDeps(logger zerolog.Logger, opts Options, deps Deps) *Pipeline {
	if deps.OCR == nil {
		deps.OCR = ocr.None{}
	}
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		opts:   opts,
		deps:   deps,
	}
}

// OnProgress registers a progress callback
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

func (p *Pipeline) report(stage Stage, done, total int) {
	if p.progress != nil {
		p.progress(stage, done, total)
	}
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	return p.deps.OCR.Close()
}

// Extract runs the whole pipeline on one video. Unreadable input, collaborator
// contract violations, cancellation and write failures are errors; a video with
// nothing worth keeping yields a Result with StatusEmpty.
func (p *Pipeline) Extract(ctx context.Context, input string) (*Result, error) {
	start := time.Now()
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Input:     input,
		OutputDir: p.opts.OutputDir,
	}
	logger := logging.WithRun(p.logger, res.RunID)

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	logger.Info().Str("input", input).Msg("starting extraction")

	src, err := p.deps.Opener.Open(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer src.Close()

	info := src.Info()
	res.Video = info
	if info.TotalFrames <= 0 {
		return nil, fmt.Errorf("%s: %w", input, video.ErrNoFrames)
	}
	if info.FPS <= 0 {
		return nil, fmt.Errorf("%w: %s reports frame rate %v", video.ErrOpen, input, info.FPS)
	}

	logger.Info().
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Float64("duration", info.DurationSeconds()).
		Int("frames", info.TotalFrames).
		Msg("video opened")

	// Stage 1: transitions
	detector := scene.NewChangeDetector(logger, p.deps.Hasher, p.opts.Scale, p.opts.Detection)
	detector.OnProgress(func(frame, total int) { p.report(StageScan, frame, total) })
	events, err := detector.Detect(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to detect transitions: %w", err)
	}
	res.Transitions = len(events)
	if len(events) == 0 {
		logger.Warn().Msg("no scene transitions detected")
		return p.empty(res, ReasonNoTransitions, start), nil
	}

	// Stage 2: stable frames
	candidates, err := p.settle(ctx, logger, src, input, events)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int("transitions", len(events)).
		Int("candidates", len(candidates)).
		Msg("stable frames located")

	// Stage 3: importance and composite score
	scored, err := p.score(ctx, logger, candidates)
	if err != nil {
		return nil, err
	}
	res.Candidates = scored
	if len(scored) == 0 {
		logger.Warn().Msg("no stable candidate frames")
		return p.empty(res, ReasonNoCandidates, start), nil
	}

	// Stage 4: selection
	res.Selected = selection.Select(scored, p.opts.Selection)
	logger.Info().
		Int("candidates", len(scored)).
		Int("selected", len(res.Selected)).
		Str("strategy", string(p.opts.Selection.Strategy)).
		Msg("screenshots selected")

	// Stage 5: persistence
	writer := persist.NewWriter(logger, p.opts.OutputDir, p.opts.Output)
	p.report(StageSave, 0, len(res.Selected))
	res.Screenshots, err = writer.Save(ctx, res.Selected)
	if err != nil {
		return nil, fmt.Errorf("failed to save screenshots: %w", err)
	}
	p.report(StageSave, len(res.Selected), len(res.Selected))

	res.Status = StatusOK
	res.Elapsed = time.Since(start)
	logger.Info().
		Int("screenshots", len(res.Screenshots)).
		Dur("elapsed", res.Elapsed).
		Str("output", p.opts.OutputDir).
		Msg("extraction complete")
	return res, nil
}

func (p *Pipeline) empty(res *Result, reason EmptyReason, start time.Time) *Result {
	res.Status = StatusEmpty
	res.Reason = reason
	res.Elapsed = time.Since(start)
	return res
}

// settle locates a stable frame for every event, keeping event order. With more
// than one worker each worker decodes through its own handle.
func (p *Pipeline) settle(ctx context.Context, logger zerolog.Logger, src video.Source, input string, events []scene.TransitionEvent) ([]shots.Candidate, error) {
	locator := scene.NewStabilityLocator(logger, p.opts.Scale, p.opts.Stability)
	found := make([]*scene.StableFrame, len(events))

	var (
		mu   sync.Mutex
		done int
	)
	locate := func(ctx context.Context, s video.Source, i int) error {
		frame, err := locator.Locate(ctx, s, events[i])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).Int("transition", events[i].FrameIndex).Msg("stable frame search failed, dropping candidate")
		}
		found[i] = frame

		mu.Lock()
		done++
		p.report(StageStability, done, len(events))
		mu.Unlock()
		return nil
	}

	workers := min(max(1, p.opts.Workers), len(events))
	if workers == 1 {
		for i := range events {
			if err := locate(ctx, src, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		jobs := make(chan int)
		g.Go(func() error {
			defer close(jobs)
			for i := range events {
				select {
				case jobs <- i:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
		for range workers {
			g.Go(func() error {
				handle, err := p.deps.Opener.Open(gctx, input)
				if err != nil {
					return fmt.Errorf("failed to open decode handle: %w", err)
				}
				defer handle.Close()
				for i := range jobs {
					if err := locate(gctx, handle, i); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	candidates := make([]shots.Candidate, 0, len(events))
	for i, f := range found {
		if f == nil {
			continue
		}
		candidates = append(candidates, shots.Candidate{
			FrameIndex: f.FrameIndex,
			Timestamp:  f.Timestamp,
			Magnitude:  events[i].Magnitude,
			Stability:  f.Stability,
			Image:      f.Image,
		})
	}
	return candidates, nil
}

// score rates each candidate. An OCR failure either zeroes the candidate's
// importance or drops it, depending on DropOnOCRError.
func (p *Pipeline) score(ctx context.Context, logger zerolog.Logger, candidates []shots.Candidate) ([]shots.Scored, error) {
	scorer := scoring.NewImportanceScorer(logger, p.deps.OCR, p.opts.MinConfidence)
	scored := make([]shots.Scored, 0, len(candidates))

	for i, c := range candidates {
		imp, err := scorer.Score(ctx, c.Image)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if p.opts.DropOnOCRError {
				logger.Warn().Err(err).Int("frame", c.FrameIndex).Msg("ocr failed, dropping candidate")
				p.report(StageOCR, i+1, len(candidates))
				continue
			}
			logger.Warn().Err(err).Int("frame", c.FrameIndex).Msg("ocr failed, using zero importance")
			imp = shots.UIImportance{Elements: []shots.Element{}, Texts: []string{}}
		}

		s := scoring.Score(c, imp)
		logger.Debug().
			Int("frame", c.FrameIndex).
			Float64("timestamp", c.Timestamp).
			Int("magnitude", c.Magnitude).
			Float64("stability", c.Stability).
			Float64("ui", imp.Score).
			Float64("score", s.Score).
			Msg("candidate scored")
		scored = append(scored, s)
		p.report(StageOCR, i+1, len(candidates))
	}
	return scored, nil
}
