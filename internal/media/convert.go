package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/logging"
)

const (
	silkEncodeRate = 32000
	silkDecodeRate = 24000
	silkBitrate    = 24000
	silkComplexity = 2
)

// Converter performs format conversions by driving external tools.
type Converter struct {
	tools  Tools
	runner Runner
	log    *logging.Logger
}

// NewConverter creates a Converter. A nil runner uses ExecRunner.
func NewConverter(tools Tools, runner Runner, log *logging.Logger) *Converter {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Converter{
		tools:  tools.withDefaults(),
		runner: runner,
		log:    log.Sub("media"),
	}
}

// ToolsFromConfig maps the media config section onto Tools.
func ToolsFromConfig(cfg config.MediaConfig) Tools {
	return Tools{
		FFmpeg:      cfg.FFmpeg,
		FFprobe:     cfg.FFprobe,
		SilkEncoder: cfg.SilkEncoder,
		SilkDecoder: cfg.SilkDecoder,
	}
}

// IsMP3 reports whether path carries the .mp3 extension and starts with an
// ID3 tag or an MPEG frame sync.
func IsMP3(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 3)
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	if bytes.Equal(head, []byte("ID3")) {
		return true
	}
	return head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

// ToMP3 converts any audio file ffmpeg understands, or a SILK file, to mp3
// and returns its duration.
func (c *Converter) ToMP3(ctx context.Context, src, dst string) (time.Duration, error) {
	var err error
	switch {
	case strings.EqualFold(filepath.Ext(src), ".mp3"):
		err = CopyFile(src, dst)
	case IsSilkPath(src):
		err = c.fromSilk(ctx, src, dst)
	default:
		err = c.ffmpeg(ctx, "-i", src, dst)
	}
	if err != nil {
		return 0, err
	}
	return c.Duration(ctx, dst)
}

// ToWAV converts src to 8 kHz mono 16-bit PCM wav and returns its duration.
func (c *Converter) ToWAV(ctx context.Context, src, dst string) (time.Duration, error) {
	var err error
	switch {
	case strings.EqualFold(filepath.Ext(src), ".wav"):
		err = CopyFile(src, dst)
	case IsSilkPath(src):
		err = c.fromSilk(ctx, src, dst, wavArgs...)
	default:
		err = c.ffmpeg(ctx, append([]string{"-i", src}, append(wavArgs, dst)...)...)
	}
	if err != nil {
		return 0, err
	}
	return c.Duration(ctx, dst)
}

var wavArgs = []string{"-ar", "8000", "-ac", "1", "-acodec", "pcm_s16le"}

// fromSilk decodes src to raw PCM and lets ffmpeg write dst with the extra
// output options.
func (c *Converter) fromSilk(ctx context.Context, src, dst string, out ...string) error {
	pcm := dst + ".pcm"
	defer c.removeScratch(pcm)
	if err := c.decodeSilk(ctx, src, pcm); err != nil {
		return err
	}
	args := []string{"-f", "s16le", "-ar", strconv.Itoa(silkDecodeRate), "-ac", "1", "-i", pcm}
	args = append(args, out...)
	return c.ffmpeg(ctx, append(args, dst)...)
}

// ToAMR converts src to 8 kHz mono AMR and returns its duration.
func (c *Converter) ToAMR(ctx context.Context, src, dst string) (time.Duration, error) {
	if IsSilkPath(src) {
		return 0, fmt.Errorf("%w: silk to amr", ErrUnsupported)
	}
	if strings.EqualFold(filepath.Ext(src), ".amr") {
		if err := CopyFile(src, dst); err != nil {
			return 0, err
		}
	} else if err := c.ffmpeg(ctx, "-i", src, "-ar", "8000", "-ac", "1", "-acodec", "libopencore_amrnb", dst); err != nil {
		return 0, err
	}
	return c.Duration(ctx, dst)
}

// ToSilk converts any audio file to SILK at the supported rate closest to
// the source rate and returns the encoded duration.
func (c *Converter) ToSilk(ctx context.Context, src, dst string) (time.Duration, error) {
	if IsSilkPath(src) {
		if err := CopyFile(src, dst); err != nil {
			return 0, err
		}
		return SilkDuration(dst)
	}
	rate, err := c.SampleRate(ctx, src)
	if err != nil {
		return 0, err
	}
	return c.encode(ctx, src, dst, ClosestSilkRate(rate))
}

// MP3ToSilk encodes an mp3 into a gateway voice file. The intermediate raw
// PCM file is removed on every path.
func (c *Converter) MP3ToSilk(ctx context.Context, src, dst string) (time.Duration, error) {
	if !IsMP3(src) {
		return 0, fmt.Errorf("%w: %s", ErrNotMP3, src)
	}
	return c.encode(ctx, src, dst, silkEncodeRate)
}

func (c *Converter) encode(ctx context.Context, src, dst string, rate int) (time.Duration, error) {
	pcm := dst + ".pcm"
	defer c.removeScratch(pcm)

	r := strconv.Itoa(rate)
	if err := c.ffmpeg(ctx, "-i", src, "-ac", "1", "-ar", r, "-f", "s16le", "-acodec", "pcm_s16le", pcm); err != nil {
		return 0, err
	}
	if _, err := c.runner.Run(ctx, c.tools.SilkEncoder,
		pcm, dst,
		"-Fs_API", r,
		"-rate", strconv.Itoa(silkBitrate),
		"-complexity", strconv.Itoa(silkComplexity),
		"-tencent",
		"-quiet",
	); err != nil {
		return 0, fmt.Errorf("encoding silk: %w", err)
	}

	d, err := SilkDuration(dst)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, ErrInvalidDuration
	}
	c.log.Debug().Str("src", src).Int("rate", rate).Dur("duration", d).Msg("encoded silk")
	return d, nil
}

func (c *Converter) decodeSilk(ctx context.Context, src, pcm string) error {
	if _, err := c.runner.Run(ctx, c.tools.SilkDecoder,
		src, pcm,
		"-Fs_API", strconv.Itoa(silkDecodeRate),
		"-quiet",
	); err != nil {
		return fmt.Errorf("decoding silk: %w", err)
	}
	return nil
}

func (c *Converter) ffmpeg(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	if _, err := c.runner.Run(ctx, c.tools.FFmpeg, full...); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func (c *Converter) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Warn().Err(err).Str("path", path).Msg("failed to remove scratch file")
	}
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
