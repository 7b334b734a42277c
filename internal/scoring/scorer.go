// Package scoring rates candidate frames.
package scoring

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/keagan/snapsift/internal/ocr"
	"github.com/keagan/snapsift/internal/shots"
	"github.com/rs/zerolog"
)

const (
	buttonPoints   = 15.0
	titlePoints    = 20.0
	textRichPoints = 10.0
	// more kept texts than this earn textRichPoints
	textRichCount = 5

	DefaultMinConfidence = 0.3
)

// Weights combine the three component scores
type Weights struct {
	Transition float64
	Stability  float64
	UI         float64
}

var DefaultWeights = Weights{
	Transition: 2.0,
	Stability:  0.5,
	UI:         1.5,
}

// Composite is magnitude*2.0 + stability*0.5 + importance*1.5.
func Composite(magnitude int, stability, importance float64) float64 {
	return DefaultWeights.Composite(magnitude, stability, importance)
}

func (w Weights) Composite(magnitude int, stability, importance float64) float64 {
	return float64(magnitude)*w.Transition + stability*w.Stability + importance*w.UI
}

// Score attaches importance and the composite score to a candidate
func Score(c shots.Candidate, imp shots.UIImportance) shots.Scored {
	return shots.Scored{
		Candidate:  c,
		Importance: imp,
		Score:      Composite(c.Magnitude, c.Stability, imp.Score),
	}
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// ImportanceScorer rates a frame by the UI text it shows
type ImportanceScorer struct {
	logger        zerolog.Logger
	engine        ocr.Engine
	minConfidence float64
	buttons       []string
	titles        []string
}

// NewImportanceScorer wraps an OCR engine. The engine stays owned by the caller.
func NewImportanceScorer(logger zerolog.Logger, engine ocr.Engine, minConfidence float64) *ImportanceScorer {
	return &ImportanceScorer{
		logger:        logger.With().Str("component", "importance-scorer").Logger(),
		engine:        engine,
		minConfidence: minConfidence,
		buttons:       lowerAll(ButtonKeywords),
		titles:        lowerAll(TitleKeywords),
	}
}

// Score runs OCR on img and rates the result. OCR errors are returned as-is so the
// caller can choose between a zero score and dropping the frame.
func (s *ImportanceScorer) Score(ctx context.Context, img image.Image) (shots.UIImportance, error) {
	detections, err := s.engine.Detect(ctx, img)
	if err != nil {
		return shots.UIImportance{}, fmt.Errorf("ocr: %w", err)
	}
	imp := s.Rate(detections)

	s.logger.Debug().
		Int("detections", len(detections)).
		Int("texts", len(imp.Texts)).
		Int("elements", len(imp.Elements)).
		Float64("score", imp.Score).
		Msg("frame rated")
	return imp, nil
}

// Rate scores OCR detections. Each kept text earns the button bonus at most once
// and the title bonus at most once, independently.
func (s *ImportanceScorer) Rate(detections []ocr.Detection) shots.UIImportance {
	imp := shots.UIImportance{
		Elements: []shots.Element{},
		Texts:    []string{},
	}

	for _, d := range detections {
		if d.Confidence < s.minConfidence {
			continue
		}
		imp.Texts = append(imp.Texts, d.Text)
		lower := strings.ToLower(d.Text)

		if matches(lower, s.buttons) {
			imp.Elements = append(imp.Elements, shots.Element{
				Kind:       shots.KindButton,
				Text:       d.Text,
				Confidence: d.Confidence,
			})
			imp.Score += buttonPoints
		}
		if matches(lower, s.titles) {
			imp.Elements = append(imp.Elements, shots.Element{
				Kind:       shots.KindTitle,
				Text:       d.Text,
				Confidence: d.Confidence,
			})
			imp.Score += titlePoints
		}
	}

	if len(imp.Texts) > textRichCount {
		imp.Score += textRichPoints
	}
	return imp
}

func matches(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
