package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/gewebridge/internal/domain"
)

// sendVideo posts a video with a poster made from its first frame. Remote
// sources are passed through; local files must live in the temp root so the
// file server will hand them out.
func (p *Pipeline) sendVideo(ctx context.Context, src string, target domain.DeliveryTarget) Result {
	if src == "" {
		return fail(FailureInvalid, fmt.Errorf("%w: empty video source", ErrInvalidReply))
	}

	info, err := p.media.VideoInfo(ctx, src)
	if err != nil {
		return fail(FailureConversion, fmt.Errorf("reading video: %w", err))
	}

	scope := p.temp.Scope()
	defer scope.Close()

	poster := scope.Allocate("poster", ".jpg")
	if err := p.media.ExtractPoster(ctx, src, poster); err != nil {
		return fail(FailureConversion, fmt.Errorf("extracting poster: %w", err))
	}

	videoURL := src
	if !isRemote(src) {
		videoURL = p.mediaURL(src)
	}
	seconds := int(info.Duration.Seconds())
	if _, err := p.provider.PostVideo(ctx, target.Receiver, videoURL, p.mediaURL(poster), seconds); err != nil {
		return providerFailure("post video", err)
	}
	return ok()
}

func isRemote(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
