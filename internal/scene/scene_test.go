package scene

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/keagan/snapsift/internal/fingerprint"
	"github.com/keagan/snapsift/internal/video"
	"github.com/keagan/snapsift/internal/video/videotest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// levelHasher fingerprints a frame by its first red sample and measures distance
// as the absolute level difference.
type levelHasher struct {
	negative bool
}

func (levelHasher) Fingerprint(img image.Image) (fingerprint.Hash, error) {
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	return fingerprint.Hash(r >> 8), nil
}

func (h levelHasher) Distance(a, b fingerprint.Hash) int {
	if h.negative {
		return -1
	}
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}

func grayFrames(levels ...uint8) []*image.RGBA {
	frames := make([]*image.RGBA, len(levels))
	for i, l := range levels {
		frames[i] = videotest.Gray(8, 8, l)
	}
	return frames
}

func newDetector(threshold int) *ChangeDetector {
	return NewChangeDetector(zerolog.Nop(), levelHasher{}, Downscaler{}, DetectorConfig{
		Threshold:             threshold,
		SampleIntervalSeconds: 0.5,
	})
}

func TestSampleStride(t *testing.T) {
	d := newDetector(25)
	assert.Equal(t, 15, d.SampleStride(30))
	assert.Equal(t, 12, d.SampleStride(24))
	assert.Equal(t, 1, d.SampleStride(2))
	assert.Equal(t, 1, d.SampleStride(0.5))
}

func TestDetectThresholdIsStrict(t *testing.T) {
	// 2 fps samples every frame
	src := videotest.New(2, grayFrames(0, 25, 51))

	events, err := newDetector(25).Detect(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].FrameIndex)
	assert.Equal(t, 26, events[0].Magnitude)
	assert.InDelta(t, 1.0, events[0].Timestamp, 1e-9)
}

func TestDetectComparesConsecutiveSamples(t *testing.T) {
	// Gradual drift never exceeds the threshold between neighbouring samples.
	src := videotest.New(2, grayFrames(0, 20, 40, 60, 80))

	events, err := newDetector(25).Detect(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDetectOnlySamplesOnStride(t *testing.T) {
	// 10 fps gives a stride of 5; the spike at frame 3 is never sampled.
	levels := []uint8{0, 0, 0, 200, 0, 100, 100, 100, 100, 100, 100, 100}
	src := videotest.New(10, grayFrames(levels...))

	events, err := newDetector(25).Detect(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].FrameIndex)
	assert.Equal(t, 100, events[0].Magnitude)
	assert.InDelta(t, 0.5, events[0].Timestamp, 1e-9)
	assert.Equal(t, []int{0}, src.Seeks)
}

func TestDetectStaticVideo(t *testing.T) {
	src := videotest.New(30, videotest.Repeat(videotest.Gray(8, 8, 90), 90))

	events, err := newDetector(25).Detect(context.Background(), src)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestDetectNegativeDistance(t *testing.T) {
	d := NewChangeDetector(zerolog.Nop(), levelHasher{negative: true}, Downscaler{}, DefaultDetectorConfig())
	src := videotest.New(2, grayFrames(0, 100))

	_, err := d.Detect(context.Background(), src)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestStepRejectsBadTimestamp(t *testing.T) {
	d := newDetector(25)
	_, _, _, err := d.Step(ScanState{}, 0, -1, 0)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestStepFirstSampleNeverFires(t *testing.T) {
	d := newDetector(0)
	state, _, fired, err := d.Step(ScanState{}, 0, 0, 200)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.True(t, state.HasPrevious)
	assert.Equal(t, fingerprint.Hash(200), state.Previous)

	state, ev, fired, err := d.Step(state, 15, 0.5, 100)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 100, ev.Magnitude)
	assert.Equal(t, fingerprint.Hash(100), state.Previous)
}

func TestTransitionsStopsWhenConsumerBreaks(t *testing.T) {
	src := videotest.New(2, grayFrames(0, 100, 0, 100, 0, 100))

	var got []TransitionEvent
	for ev, err := range newDetector(25).Transitions(context.Background(), src) {
		require.NoError(t, err)
		got = append(got, ev)
		break
	}
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].FrameIndex)
	assert.Equal(t, 2, src.Reads)
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDetector(25).Detect(ctx, videotest.New(2, grayFrames(0, 100)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectProgress(t *testing.T) {
	d := newDetector(25)
	var last, total int
	d.OnProgress(func(frame, n int) { last, total = frame, n })

	_, err := d.Detect(context.Background(), videotest.New(2, grayFrames(0, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, 3, last)
	assert.Equal(t, 3, total)
}

func TestMeanAbsDiff(t *testing.T) {
	a := videotest.Gray(4, 4, 10)
	b := videotest.Gray(4, 4, 30)
	assert.InDelta(t, 20.0, MeanAbsDiff(a, b), 1e-9)
	assert.InDelta(t, 0.0, MeanAbsDiff(a, a), 1e-9)

	// alpha does not count
	c := videotest.Solid(4, 4, color.RGBA{R: 10, G: 10, B: 10, A: 0})
	assert.InDelta(t, 0.0, MeanAbsDiff(a, c), 1e-9)

	// one channel differs by 90 on every pixel
	d := videotest.Solid(4, 4, color.RGBA{R: 100, G: 10, B: 10, A: 255})
	assert.InDelta(t, 30.0, MeanAbsDiff(a, d), 1e-9)
}

func TestMeanAbsDiffSubImage(t *testing.T) {
	canvas := videotest.Gray(8, 8, 200)
	for y := 4; y < 8; y++ {
		for x := 4; x < 8; x++ {
			canvas.SetRGBA(x, y, color.RGBA{R: 10, G: 10, B: 10, A: 255})
		}
	}
	corner := canvas.SubImage(image.Rect(4, 4, 8, 8)).(*image.RGBA)

	assert.InDelta(t, 0.0, MeanAbsDiff(corner, videotest.Gray(4, 4, 10)), 1e-9)
	assert.InDelta(t, 20.0, MeanAbsDiff(videotest.Gray(4, 4, 30), corner), 1e-9)
}

func TestDownscaler(t *testing.T) {
	img := videotest.Gray(64, 48, 120)

	assert.Same(t, img, Downscaler{}.Apply(img))

	out := Downscaler{Width: 32, Height: 18}.Apply(img)
	assert.Equal(t, 32, out.Bounds().Dx())
	assert.Equal(t, 18, out.Bounds().Dy())
	r, _, _, _ := out.At(5, 5).RGBA()
	assert.InDelta(t, 120, int(r>>8), 1)
}

func newLocator() *StabilityLocator {
	return NewStabilityLocator(zerolog.Nop(), Downscaler{}, DefaultStabilityConfig())
}

func videotestInfo(fps float64, total int) video.Info {
	return video.Info{FPS: fps, TotalFrames: total}
}

func TestWindow(t *testing.T) {
	l := newLocator()

	start, end := l.Window(TransitionEvent{FrameIndex: 100}, videotestInfo(30, 1000))
	assert.Equal(t, 115, start)
	assert.Equal(t, 145, end)

	start, end = l.Window(TransitionEvent{FrameIndex: 100}, videotestInfo(30, 120))
	assert.Equal(t, 115, start)
	assert.Equal(t, 120, end)
}

func TestLocatePicksSteadiestFrame(t *testing.T) {
	// 10 fps: window after frame 0 is [5, 15)
	frames := grayFrames(0, 0, 0, 0, 0, 0, 50, 50, 50, 80, 20, 60, 61, 61, 10, 10)
	src := videotest.New(10, frames)

	best, err := newLocator().Locate(context.Background(), src, TransitionEvent{FrameIndex: 0})
	require.NoError(t, err)
	require.NotNil(t, best)
	// frame 7 is the first with zero motion; the later ties at 8 and 13 do not replace it
	assert.Equal(t, 7, best.FrameIndex)
	assert.InDelta(t, 100.0, best.Stability, 1e-9)
	assert.InDelta(t, 0.7, best.Timestamp, 1e-9)
	assert.Same(t, frames[7], best.Image)
	assert.Equal(t, []int{5}, src.Seeks)
	assert.Equal(t, 10, src.Reads)
}

func TestLocateFirstPairSeedsBest(t *testing.T) {
	// Window [5, 15) with every step moving; the first pair is the best.
	levels := []uint8{0, 0, 0, 0, 0, 0, 10, 40, 80, 130, 190, 250, 190, 130, 70}
	src := videotest.New(10, grayFrames(levels...))

	best, err := newLocator().Locate(context.Background(), src, TransitionEvent{FrameIndex: 0})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 6, best.FrameIndex)
	assert.InDelta(t, 90.0, best.Stability, 1e-9)
}

func TestLocateNearEnd(t *testing.T) {
	src := videotest.New(10, grayFrames(0, 0, 0, 0, 0, 0))

	best, err := newLocator().Locate(context.Background(), src, TransitionEvent{FrameIndex: 0})
	require.NoError(t, err)
	assert.Nil(t, best)
	assert.Empty(t, src.Seeks)
}

func TestLocateClampedWindow(t *testing.T) {
	// Window [5, 15) clamps to [5, 7): one pair survives.
	src := videotest.New(10, grayFrames(0, 0, 0, 0, 0, 40, 50))

	best, err := newLocator().Locate(context.Background(), src, TransitionEvent{FrameIndex: 0})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 6, best.FrameIndex)
	assert.InDelta(t, 90.0, best.Stability, 1e-9)
}
