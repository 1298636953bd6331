// Package media converts voice, image, and video payloads into the formats
// the gateway accepts. Audio and video work is delegated to ffmpeg/ffprobe
// and the SILK v3 reference encoder/decoder.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrUnsupported     = errors.New("media: unsupported source format")
	ErrNotMP3          = errors.New("media: source is not an mp3 file")
	ErrInvalidDuration = errors.New("media: encoder reported invalid duration")
	ErrNoFrame         = errors.New("media: no video frame could be decoded")
)

// Tools names the external binaries. Empty fields fall back to the defaults
// found on $PATH.
type Tools struct {
	FFmpeg      string
	FFprobe     string
	SilkEncoder string
	SilkDecoder string
}

func (t Tools) withDefaults() Tools {
	if t.FFmpeg == "" {
		t.FFmpeg = "ffmpeg"
	}
	if t.FFprobe == "" {
		t.FFprobe = "ffprobe"
	}
	if t.SilkEncoder == "" {
		t.SilkEncoder = "silk_v3_encoder"
	}
	if t.SilkDecoder == "" {
		t.SilkDecoder = "silk_v3_decoder"
	}
	return t
}

// Runner executes an external tool and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(errBuf.String()))
	}
	return out.Bytes(), nil
}

// Missing returns the configured tools that cannot be found.
func (t Tools) Missing() []string {
	t = t.withDefaults()
	var missing []string
	for _, name := range []string{t.FFmpeg, t.FFprobe, t.SilkEncoder, t.SilkDecoder} {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}
