package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

// DetectImageType returns ".gif" for GIF87a/GIF89a data and ".png" for
// everything else.
func DetectImageType(data []byte) string {
	if len(data) >= 6 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))) {
		return ".gif"
	}
	return ".png"
}

// DetectImageFileType sniffs the file header. Unreadable files are treated
// as png.
func DetectImageFileType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ".png"
	}
	defer f.Close()

	head := make([]byte, 6)
	n, _ := io.ReadFull(f, head)
	return DetectImageType(head[:n])
}

// IsWebP reports whether data has a RIFF/WEBP container header.
func IsWebP(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

// WebPToPNG re-encodes a webp image as png.
func WebPToPNG(data []byte) ([]byte, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding webp: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractPoster writes the first decodable frame of src to dst as an image.
func (c *Converter) ExtractPoster(ctx context.Context, src, dst string) error {
	if err := c.ffmpeg(ctx, "-i", src, "-frames:v", "1", "-q:v", "2", dst); err != nil {
		return fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	fi, err := os.Stat(dst)
	if err != nil || fi.Size() == 0 {
		return ErrNoFrame
	}
	return nil
}
