package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"

	"github.com/keagan/snapsift/internal/video"
	"github.com/keagan/snapsift/pkg/util"
	"github.com/rs/zerolog"
)

// FrameReader decodes a video into RGBA frames through an ffmpeg rawvideo pipe.
// Seeking restarts the decoder at the requested frame.
type FrameReader struct {
	exec   *Executor
	info   video.Info
	logger zerolog.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	wg     sync.WaitGroup

	next int
	eos  bool
}

var _ video.Source = (*FrameReader)(nil)

// Open probes the file and returns a frame reader positioned at frame 0
func (e *Executor) Open(ctx context.Context, path string) (video.Source, error) {
	if !util.FileExists(path) {
		return nil, fmt.Errorf("%w: file not found: %s", video.ErrOpen, path)
	}

	info, err := e.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", video.ErrOpen, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", video.ErrOpen, info.Width, info.Height)
	}
	if info.TotalFrames <= 0 {
		return nil, fmt.Errorf("%w: %s", video.ErrNoFrames, path)
	}

	return &FrameReader{
		exec:   e,
		info:   info,
		logger: e.logger.With().Str("input", path).Logger(),
	}, nil
}

// Info returns the probed stream description
func (r *FrameReader) Info() video.Info {
	return r.info
}

// Seek stops the running decoder; the next read restarts it at index
func (r *FrameReader) Seek(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("seek to negative frame %d", index)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.cmd != nil && index == r.next {
		return nil
	}
	r.stop()
	r.next = index
	r.eos = false
	return nil
}

// ReadNext returns the frame under the cursor
func (r *FrameReader) ReadNext(ctx context.Context) (video.Frame, error) {
	if err := ctx.Err(); err != nil {
		return video.Frame{}, err
	}
	if r.eos {
		return video.Frame{}, video.ErrEndOfStream
	}
	if r.cmd == nil {
		if err := r.start(ctx); err != nil {
			return video.Frame{}, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, r.info.Width, r.info.Height))
	if _, err := io.ReadFull(r.stdout, img.Pix); err != nil {
		r.stop()
		if ctx.Err() != nil {
			return video.Frame{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.eos = true
			return video.Frame{}, video.ErrEndOfStream
		}
		return video.Frame{}, fmt.Errorf("read frame %d: %w", r.next, err)
	}

	frame := video.Frame{Index: r.next, Image: img}
	r.next++
	return frame, nil
}

// Close terminates the decoder if one is running
func (r *FrameReader) Close() error {
	r.stop()
	return nil
}

func (r *FrameReader) start(ctx context.Context) error {
	args := make([]string, 0, 16)
	if r.next > 0 {
		// Half a frame early so float rounding can't skip the target frame
		seekTo := (float64(r.next) - 0.5) / r.info.FPS
		args = append(args, "-ss", util.FormatSeconds(seekTo))
	}
	args = append(args,
		"-i", r.info.Path,
		"-map", "0:v:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)

	cmd := r.exec.command(ctx, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		streamOutput(stderr, func(line string) {
			r.logger.Debug().Str("ffmpeg", line).Msg("decoder output")
		})
	}()

	r.logger.Debug().Int("frame", r.next).Msg("decoder started")

	r.cmd = cmd
	r.stdout = stdout
	return nil
}

func (r *FrameReader) stop() {
	if r.cmd == nil {
		return
	}
	_ = r.stdout.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	r.wg.Wait()
	_ = r.cmd.Wait()
	r.cmd = nil
	r.stdout = nil
}
