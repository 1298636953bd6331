package media

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const silkFrame = 20 * time.Millisecond

var silkMagic = []byte("#!SILK_V3")

// SilkRates are the sample rates the SILK encoder accepts.
var SilkRates = []int{8000, 12000, 16000, 24000, 32000, 44100, 48000}

// ClosestSilkRate snaps rate to the nearest supported SILK rate. Ties go to
// the rate listed first.
func ClosestSilkRate(rate int) int {
	best := SilkRates[0]
	bestDiff := absInt(rate - best)
	for _, r := range SilkRates[1:] {
		if d := absInt(rate - r); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// IsSilkPath reports whether the extension names the gateway voice codec.
func IsSilkPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sil", ".silk", ".slk":
		return true
	}
	return false
}

// SilkDuration reads a SILK v3 file and returns its playback length. The
// Tencent variant prefixes the magic with 0x02; both are accepted. Each
// payload frame is a little-endian uint16 length followed by 20 ms of audio.
func SilkDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return silkDurationFrom(bufio.NewReader(f))
}

func silkDurationFrom(r *bufio.Reader) (time.Duration, error) {
	if b, err := r.Peek(1); err == nil && b[0] == 0x02 {
		r.Discard(1)
	}
	head := make([]byte, len(silkMagic))
	if _, err := io.ReadFull(r, head); err != nil || !bytes.Equal(head, silkMagic) {
		return 0, fmt.Errorf("%w: missing SILK_V3 header", ErrUnsupported)
	}

	var frames int64
	for {
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		// 0xFFFF terminates the stream in the reference encoder output.
		if n == 0xFFFF {
			break
		}
		if _, err := r.Discard(int(n)); err != nil {
			break
		}
		frames++
	}
	return time.Duration(frames) * silkFrame, nil
}
