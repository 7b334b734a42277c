// Package shots holds the records that flow from candidate frames to saved screenshots.
package shots

import (
	"image"
	"slices"
	"sort"
)

// ElementKind classifies a recognised UI text
type ElementKind string

const (
	KindButton ElementKind = "button"
	KindTitle  ElementKind = "title"
)

// Element is a detected text that matched a UI keyword
type Element struct {
	Kind       ElementKind `json:"type"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
}

// UIImportance is the OCR-derived importance of a frame
type UIImportance struct {
	Score    float64
	Elements []Element
	Texts    []string
}

// Candidate is the stable frame chosen after one transition
type Candidate struct {
	FrameIndex int
	Timestamp  float64
	Magnitude  int
	Stability  float64
	// Image is the full-resolution frame
	Image *image.RGBA
}

// Scored is a candidate with its importance and composite score
type Scored struct {
	Candidate
	Importance UIImportance
	Score      float64
}

// Screenshot is one saved shot as recorded in metadata.json. Index is the
// 1-based chronological rank.
type Screenshot struct {
	Index               int       `json:"index"`
	Filename            string    `json:"filename"`
	Timestamp           float64   `json:"timestamp"`
	Score               float64   `json:"score"`
	TransitionMagnitude int       `json:"transition_magnitude"`
	StabilityScore      float64   `json:"stability_score"`
	UIImportanceScore   float64   `json:"ui_importance_score"`
	UIElements          []Element `json:"ui_elements"`
	DetectedTexts       []string  `json:"detected_texts"`
}

// NewScreenshot builds the metadata record for a selected candidate. Filename is
// filled in by the writer.
func NewScreenshot(rank int, s Scored) Screenshot {
	elements := s.Importance.Elements
	if elements == nil {
		elements = []Element{}
	}
	texts := s.Importance.Texts
	if texts == nil {
		texts = []string{}
	}
	return Screenshot{
		Index:               rank,
		Timestamp:           s.Timestamp,
		Score:               s.Score,
		TransitionMagnitude: s.Magnitude,
		StabilityScore:      s.Stability,
		UIImportanceScore:   s.Importance.Score,
		UIElements:          elements,
		DetectedTexts:       texts,
	}
}

// Set collects screenshots of one run and keeps them in rank order
type Set struct {
	shots []Screenshot
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{shots: make([]Screenshot, 0)}
}

// Add appends a screenshot
func (s *Set) Add(shot Screenshot) {
	s.shots = append(s.shots, shot)
}

// Get returns the screenshot with the given rank
func (s *Set) Get(index int) (Screenshot, bool) {
	for _, shot := range s.shots {
		if shot.Index == index {
			return shot, true
		}
	}
	return Screenshot{}, false
}

// All returns a copy of the screenshots sorted by rank
func (s *Set) All() []Screenshot {
	sort.SliceStable(s.shots, func(i, j int) bool {
		return s.shots[i].Index < s.shots[j].Index
	})
	return slices.Clone(s.shots)
}

// Len returns the number of screenshots
func (s *Set) Len() int {
	return len(s.shots)
}
