package main

import (
	"io"
	"sync"
	"time"

	"github.com/keagan/snapsift/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

// stageProgress shows one progress bar per pipeline stage on a terminal
type stageProgress struct {
	out   io.Writer
	mu    sync.Mutex
	stage pipeline.Stage
	bar   *progressbar.ProgressBar
}

func newStageProgress(out io.Writer) *stageProgress {
	return &stageProgress{out: out}
}

// Update is a pipeline.ProgressFunc
func (p *stageProgress) Update(stage pipeline.Stage, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || stage != p.stage {
		p.finishLocked()
		p.stage = stage
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(string(stage)),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

// Finish clears the current bar
func (p *stageProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *stageProgress) finishLocked() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
