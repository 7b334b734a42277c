// Package catalog loads an output directory into the entries shown by the review window.
package catalog

import (
	"fmt"
	"strings"

	"github.com/keagan/snapsift/internal/persist"
	"github.com/keagan/snapsift/internal/shots"
	"github.com/keagan/snapsift/pkg/util"
)

// Entry is one screenshot as listed in the review window
type Entry struct {
	Shot    shots.Screenshot
	Path    string
	Missing bool
}

// Title is the one-line list label
func (e Entry) Title() string {
	title := fmt.Sprintf("#%02d  %s  score %.0f", e.Shot.Index, util.FormatClock(e.Shot.Timestamp), e.Shot.Score)
	if e.Missing {
		title += "  (missing)"
	}
	return title
}

// Details is the multi-line breakdown shown beside the preview
func (e Entry) Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", e.Shot.Filename)
	fmt.Fprintf(&b, "Time: %.2fs\n", e.Shot.Timestamp)
	fmt.Fprintf(&b, "Score: %.2f\n", e.Shot.Score)
	fmt.Fprintf(&b, "  transition %d  stability %.2f  ui %.0f\n",
		e.Shot.TransitionMagnitude, e.Shot.StabilityScore, e.Shot.UIImportanceScore)

	if len(e.Shot.UIElements) > 0 {
		b.WriteString("UI elements:\n")
		for _, el := range e.Shot.UIElements {
			fmt.Fprintf(&b, "  [%s] %s (%.2f)\n", el.Kind, el.Text, el.Confidence)
		}
	}
	if len(e.Shot.DetectedTexts) > 0 {
		fmt.Fprintf(&b, "Texts: %s\n", strings.Join(e.Shot.DetectedTexts, " / "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Catalog is a loaded output directory
type Catalog struct {
	Dir     string
	Entries []Entry
}

// Load validates dir and builds its entries in rank order
func Load(dir string) (*Catalog, error) {
	report, err := persist.Validate(dir)
	if err != nil {
		return nil, err
	}

	missing := make(map[string]bool, len(report.Missing))
	for _, name := range report.Missing {
		missing[name] = true
	}

	set := shots.NewSet()
	for _, shot := range report.Screenshots {
		set.Add(shot)
	}

	c := &Catalog{Dir: dir}
	for _, shot := range set.All() {
		c.Entries = append(c.Entries, Entry{
			Shot:    shot,
			Path:    persist.ScreenshotPath(dir, shot.Filename),
			Missing: missing[shot.Filename],
		})
	}
	return c, nil
}

// MissingCount is the number of entries without an image file
func (c *Catalog) MissingCount() int {
	n := 0
	for _, e := range c.Entries {
		if e.Missing {
			n++
		}
	}
	return n
}
