package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:01:05.500", FormatDuration(65500*time.Millisecond))
	assert.Equal(t, "01:00:00.000", FormatDuration(time.Hour))
}

func TestFormatClock(t *testing.T) {
	cases := map[float64]string{
		0:      "00-00",
		5.9:    "00-05",
		65:     "01-05",
		3600.4: "60-00",
		-3:     "00-00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatClock(in), "seconds=%v", in)
	}
}

func TestFramesFor(t *testing.T) {
	assert.Equal(t, 15, FramesFor(30, 0.5))
	assert.Equal(t, 45, FramesFor(30, 1.5))
	assert.Equal(t, 15, FramesFor(29.97, 0.5))
	assert.Equal(t, 0, FramesFor(0.5, 0.5))
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 30.0, ParseFrameRate("30/1"))
	assert.InDelta(t, 29.97, ParseFrameRate("30000/1001"), 0.001)
	assert.Equal(t, 25.0, ParseFrameRate("25"))
	assert.Equal(t, 0.0, ParseFrameRate("30/0"))
	assert.Equal(t, 0.0, ParseFrameRate("a/b"))
}
