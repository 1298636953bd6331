package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Duration returns the container duration reported by ffprobe, rounded to
// the millisecond.
func (c *Converter) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := c.runner.Run(ctx, c.tools.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probing duration: %w", err)
	}
	return parseSeconds(strings.TrimSpace(string(out)))
}

// SampleRate returns the sample rate of the first audio stream.
func (c *Converter) SampleRate(ctx context.Context, path string) (int, error) {
	out, err := c.runner.Run(ctx, c.tools.FFprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probing sample rate: %w", err)
	}
	rate, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parsing sample rate: %w", err)
	}
	return rate, nil
}

// VideoInfo describes the first video stream of a file.
type VideoInfo struct {
	FPS      float64
	Frames   int64
	Duration time.Duration
}

type probeOutput struct {
	Streams []struct {
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// VideoInfo reads frame rate and frame count and derives the duration from
// them. Containers that do not record a frame count fall back to the
// container duration.
func (c *Converter) VideoInfo(ctx context.Context, src string) (VideoInfo, error) {
	out, err := c.runner.Run(ctx, c.tools.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,nb_frames:format=duration",
		"-of", "json",
		src,
	)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("opening video: %w", err)
	}

	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return VideoInfo{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return VideoInfo{}, ErrNoFrame
	}

	info := VideoInfo{FPS: parseRate(p.Streams[0].RFrameRate)}
	info.Frames, _ = strconv.ParseInt(p.Streams[0].NbFrames, 10, 64)

	if info.FPS > 0 && info.Frames > 0 {
		info.Duration = time.Duration(float64(info.Frames) / info.FPS * float64(time.Second))
		return info, nil
	}
	if d, err := parseSeconds(p.Format.Duration); err == nil {
		info.Duration = d
	}
	return info, nil
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(math.Round(secs*1000)) * time.Millisecond, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
