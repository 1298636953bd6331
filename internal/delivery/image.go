package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/media"
	"github.com/soyeahso/gewebridge/internal/version"
)

const maxImageBytes = 32 << 20

var errImageTooLarge = errors.New("image exceeds size limit")

func (p *Pipeline) sendImageURL(ctx context.Context, rawURL string, target domain.DeliveryTarget) Result {
	if rawURL == "" {
		return fail(FailureInvalid, fmt.Errorf("%w: empty image url", ErrInvalidReply))
	}
	data, err := p.download(ctx, rawURL)
	if errors.Is(err, errImageTooLarge) {
		return fail(FailureIO, err)
	}
	if err != nil {
		return fail(FailureNetwork, err)
	}
	webp := strings.Contains(strings.ToLower(rawURL), ".webp")
	return p.sendImageBytes(ctx, data, webp, target)
}

func (p *Pipeline) sendImageStream(ctx context.Context, body io.ReadCloser, target domain.DeliveryTarget) Result {
	if body == nil {
		return fail(FailureInvalid, fmt.Errorf("%w: image reply without body", ErrInvalidReply))
	}
	data, err := readImage(body, p.imageLimit)
	body.Close()
	if err != nil {
		return fail(FailureIO, fmt.Errorf("reading image: %w", err))
	}
	return p.sendImageBytes(ctx, data, false, target)
}

// sendImageBytes stages data and posts it. WebP is re-encoded as png; GIFs
// go out as files so they keep animating.
func (p *Pipeline) sendImageBytes(ctx context.Context, data []byte, webpHint bool, target domain.DeliveryTarget) Result {
	if len(data) == 0 {
		return fail(FailureInvalid, fmt.Errorf("%w: empty image", ErrInvalidReply))
	}

	scope := p.temp.Scope()
	defer scope.Close()

	var ext string
	if webpHint || media.IsWebP(data) {
		png, err := p.webpToPNG(data)
		if err != nil {
			return fail(FailureConversion, err)
		}
		data, ext = png, ".png"
	} else {
		ext = media.DetectImageType(data)
	}

	path := scope.Allocate("img", ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fail(FailureIO, fmt.Errorf("staging image: %w", err))
	}

	url := p.mediaURL(path)
	if ext == ".gif" {
		if _, err := p.provider.PostFile(ctx, target.Receiver, url, filepath.Base(path)); err != nil {
			return providerFailure("post gif file", err)
		}
		return ok()
	}
	if _, err := p.provider.PostImage(ctx, target.Receiver, url); err != nil {
		return providerFailure("post image", err)
	}
	return ok()
}

func (p *Pipeline) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("downloading image: http %d", resp.StatusCode)
	}
	data, err := readImage(resp.Body, p.imageLimit)
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	return data, nil
}

// readImage reads r to the end. Anything longer than limit is rejected
// rather than cut short.
func readImage(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errImageTooLarge, limit)
	}
	return data, nil
}
