package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/keagan/snapsift/internal/video"
	"github.com/keagan/snapsift/pkg/util"
)

// ProbeVideo extracts stream metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (video.Info, error) {
	if filePath == "" {
		return video.Info{}, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return video.Info{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbe(output)
	if err != nil {
		return video.Info{}, err
	}
	info.Path = filePath

	e.logger.Debug().
		Str("input", filePath).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("frames", info.TotalFrames).
		Msg("video probed")

	return info, nil
}

// parseProbe converts ffprobe JSON into stream info for the first video stream
func parseProbe(output []byte) (video.Info, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return video.Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}

		info := video.Info{
			Width:  stream.Width,
			Height: stream.Height,
			Codec:  stream.CodecName,
		}

		// Prefer the nominal rate; fall back to the average for VFR containers
		info.FPS = util.ParseFrameRate(stream.RFrameRate)
		if info.FPS <= 0 || info.FPS > 1000 {
			info.FPS = util.ParseFrameRate(stream.AvgFrameRate)
		}
		if info.FPS <= 0 {
			return video.Info{}, fmt.Errorf("video stream has no usable frame rate")
		}

		if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
			info.TotalFrames = n
		} else {
			duration := parseSeconds(stream.Duration)
			if duration <= 0 {
				duration = parseSeconds(probe.Format.Duration)
			}
			info.TotalFrames = int(math.Round(duration * info.FPS))
		}

		// ffmpeg auto-rotates on decode, so decoded frames follow the display orientation
		if rot := stream.rotation(); rot%180 != 0 {
			info.Width, info.Height = info.Height, info.Width
		}

		return info, nil
	}

	return video.Info{}, fmt.Errorf("no video stream found")
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	NbFrames     string            `json:"nb_frames"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation int `json:"rotation"`
	} `json:"side_data_list"`
}

// rotation returns the display rotation in degrees, normalised to [0, 360)
func (s probeStream) rotation() int {
	rot := 0
	if v, ok := s.Tags["rotate"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			rot = n
		}
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rot = sd.Rotation
		}
	}
	rot %= 360
	if rot < 0 {
		rot += 360
	}
	return rot
}
