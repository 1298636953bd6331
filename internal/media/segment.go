package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Window is one slice of a longer recording.
type Window struct {
	Start    time.Duration
	Duration time.Duration
}

// Windows plans consecutive slices of at most max covering total. The last
// slice carries the remainder.
func Windows(total, max time.Duration) []Window {
	if max <= 0 || total <= 0 {
		return nil
	}
	var out []Window
	for start := time.Duration(0); start < total; start += max {
		d := max
		if rest := total - start; rest < d {
			d = rest
		}
		out = append(out, Window{Start: start, Duration: d})
	}
	return out
}

// Segment is a playable file produced by Split.
type Segment struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
	Path     string
}

// Split cuts path into segments no longer than max. Audio that already fits
// comes back as a single segment pointing at the original file. Otherwise
// the segments are written next to the source as <name>_<n><ext>, numbered
// from 1. On error any segments already written are removed.
func (c *Converter) Split(ctx context.Context, path string, max time.Duration) (time.Duration, []Segment, error) {
	total, err := c.Duration(ctx, path)
	if err != nil {
		return 0, nil, err
	}
	if total <= max {
		return total, []Segment{{Index: 1, Duration: total, Path: path}}, nil
	}

	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(path, ext)

	var segs []Segment
	for i, w := range Windows(total, max) {
		out := fmt.Sprintf("%s_%d%s", prefix, i+1, ext)
		err := c.ffmpeg(ctx,
			"-ss", formatSeconds(w.Start),
			"-t", formatSeconds(w.Duration),
			"-i", path,
			out,
		)
		if err != nil {
			for _, s := range segs {
				c.removeScratch(s.Path)
			}
			os.Remove(out)
			return total, nil, fmt.Errorf("exporting segment %d: %w", i+1, err)
		}
		segs = append(segs, Segment{Index: i + 1, Start: w.Start, Duration: w.Duration, Path: out})
	}

	c.log.Debug().Str("src", path).Dur("total", total).Int("segments", len(segs)).Msg("split audio")
	return total, segs, nil
}
