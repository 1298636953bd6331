package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/media"
)

// sendVoice splits an mp3 into segments no longer than segmentMax, encodes
// each to SILK, and posts them in order with pacing between sends. The
// first failure stops the remaining segments.
func (p *Pipeline) sendVoice(ctx context.Context, path string, target domain.DeliveryTarget) Result {
	scope := p.temp.Scope()
	defer scope.Close()

	fi, err := os.Stat(path)
	if err != nil {
		return fail(FailureIO, fmt.Errorf("voice source: %w", err))
	}
	if fi.IsDir() {
		return fail(FailureInvalid, fmt.Errorf("%w: voice source %s is a directory", ErrInvalidReply, path))
	}
	if !media.IsMP3(path) {
		return fail(FailureConversion, fmt.Errorf("%w: %s", media.ErrNotMP3, path))
	}

	// Segments are written next to the file being split, so split a private
	// copy inside the temp root.
	work := scope.Allocate("voice_src", filepath.Ext(path))
	if err := media.CopyFile(path, work); err != nil {
		return fail(FailureIO, fmt.Errorf("staging voice source: %w", err))
	}

	total, segs, err := p.media.Split(ctx, work, p.segmentMax)
	if err != nil {
		return fail(FailureConversion, fmt.Errorf("splitting voice: %w", err))
	}
	for _, s := range segs {
		scope.Track(s.Path)
	}
	p.log.Debug().Str("src", path).Dur("total", total).Int("segments", len(segs)).Msg("voice planned")

	sent := 0
	for i, seg := range segs {
		silk := scope.Allocate("voice", ".silk")
		d, err := p.media.MP3ToSilk(ctx, seg.Path, silk)
		if err != nil {
			return partial(fail(FailureConversion, fmt.Errorf("segment %d/%d: %w", i+1, len(segs), err)), sent)
		}

		if _, err := p.provider.PostVoice(ctx, target.Receiver, p.mediaURL(silk), int(d.Milliseconds())); err != nil {
			return partial(providerFailure(fmt.Sprintf("post voice segment %d/%d", i+1, len(segs)), err), sent)
		}
		sent++
		p.metrics.segmentSent()

		if i < len(segs)-1 {
			if err := p.sleep(ctx, p.pace); err != nil {
				return partial(fail(FailureIO, fmt.Errorf("pacing voice: %w", err)), sent)
			}
		}
	}
	return partial(ok(), sent)
}

func partial(r Result, sent int) Result {
	r.Segments = sent
	return r
}
