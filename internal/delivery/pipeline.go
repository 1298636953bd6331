// Package delivery turns replies into provider calls. It converts media,
// stages it in the temp root, builds fetch URLs, and guarantees every file
// it created is gone before Send returns.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/gewe"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/soyeahso/gewebridge/internal/media"
	"github.com/soyeahso/gewebridge/internal/store"
	"github.com/soyeahso/gewebridge/internal/tempfs"
)

const (
	DefaultSegmentMax      = 60 * time.Second
	DefaultPace            = 300 * time.Millisecond
	DefaultDownloadTimeout = 10 * time.Second
)

// Provider is the subset of the gateway client the pipeline calls.
type Provider interface {
	PostText(ctx context.Context, to, content, ats string) (*gewe.Result, error)
	PostImage(ctx context.Context, to, imgURL string) (*gewe.Result, error)
	PostVoice(ctx context.Context, to, voiceURL string, durationMs int) (*gewe.Result, error)
	PostVideo(ctx context.Context, to, videoURL, thumbURL string, seconds int) (*gewe.Result, error)
	PostFile(ctx context.Context, to, fileURL, fileName string) (*gewe.Result, error)
	PostAppMessage(ctx context.Context, to, appmsg string) (*gewe.Result, error)
}

// Media is the subset of media.Converter the pipeline needs.
type Media interface {
	Split(ctx context.Context, path string, max time.Duration) (time.Duration, []media.Segment, error)
	MP3ToSilk(ctx context.Context, src, dst string) (time.Duration, error)
	VideoInfo(ctx context.Context, src string) (media.VideoInfo, error)
	ExtractPoster(ctx context.Context, src, dst string) error
}

// Journal persists delivery outcomes.
type Journal interface {
	Record(ctx context.Context, d store.Delivery) error
}

// Options configures a Pipeline. Provider, Media, Temp and CallbackURL are
// required.
type Options struct {
	Provider        Provider
	Media           Media
	Temp            *tempfs.Manager
	CallbackURL     string
	WorkDir         string // defaults to the process working directory
	SegmentMax      time.Duration
	Pace            time.Duration
	DownloadTimeout time.Duration
	HTTPClient      *http.Client
	Hooks           *hooks.Manager
	Journal         Journal
	Metrics         *Metrics
	Logger          *logging.Logger
}

// Pipeline delivers replies. It is safe for concurrent use; each Send works
// on its own temp scope.
type Pipeline struct {
	provider    Provider
	media       Media
	temp        *tempfs.Manager
	callbackURL string
	workDir     string
	segmentMax  time.Duration
	pace        time.Duration
	httpc       *http.Client
	hooks       *hooks.Manager
	journal     Journal
	metrics     *Metrics
	validate    *validator.Validate
	log         *logging.Logger

	sleep      func(ctx context.Context, d time.Duration) error
	webpToPNG  func([]byte) ([]byte, error)
	imageLimit int64
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Provider == nil || opts.Media == nil || opts.Temp == nil {
		return nil, fmt.Errorf("delivery: provider, media and temp manager are required")
	}
	if opts.CallbackURL == "" {
		return nil, fmt.Errorf("delivery: callback url is required")
	}
	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		opts.WorkDir = wd
	}
	if opts.SegmentMax <= 0 {
		opts.SegmentMax = DefaultSegmentMax
	}
	if opts.Pace < 0 {
		opts.Pace = 0
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.DownloadTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(nil, "silent")
	}

	return &Pipeline{
		provider:    opts.Provider,
		media:       opts.Media,
		temp:        opts.Temp,
		callbackURL: opts.CallbackURL,
		workDir:     opts.WorkDir,
		segmentMax:  opts.SegmentMax,
		pace:        opts.Pace,
		httpc:       opts.HTTPClient,
		hooks:       opts.Hooks,
		journal:     opts.Journal,
		metrics:     opts.Metrics,
		validate:    validator.New(),
		log:         opts.Logger.Sub("delivery"),
		sleep:       sleepCtx,
		webpToPNG:   media.WebPToPNG,
		imageLimit:  maxImageBytes,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver sends reply and logs the outcome. It never returns an error so a
// bad reply cannot stop the caller's message loop.
func (p *Pipeline) Deliver(ctx context.Context, reply domain.Reply, target domain.DeliveryTarget) {
	res := p.Send(ctx, reply, target)
	if res.OK() {
		p.log.Info().
			Str("kind", string(res.Kind)).
			Str("receiver", target.Receiver).
			Int("segments", res.Segments).
			Msg("reply delivered")
		return
	}
	p.log.Error().
		Err(res.Err).
		Str("kind", string(res.Kind)).
		Str("receiver", target.Receiver).
		Str("failure", string(res.Failure)).
		Msg("reply not delivered")
}

// Send delivers reply and reports the structured outcome. All temp files
// allocated for the attempt are removed before it returns.
func (p *Pipeline) Send(ctx context.Context, reply domain.Reply, target domain.DeliveryTarget) Result {
	start := time.Now()
	if reply.Body != nil {
		reply.Body = &onceCloser{ReadCloser: reply.Body}
		defer reply.Body.Close()
	}

	var res Result
	switch {
	case !reply.Kind.Valid():
		res = fail(FailureInvalid, fmt.Errorf("%w: unknown kind %q", ErrInvalidReply, reply.Kind))
	default:
		if err := p.validate.Struct(target); err != nil {
			res = fail(FailureInvalid, fmt.Errorf("%w: target: %v", ErrInvalidReply, err))
			break
		}
		p.emit(ctx, hooks.EventReplySending, reply, target, nil)
		res = p.dispatch(ctx, reply, target)
	}
	res.Kind = reply.Kind

	p.finish(ctx, target, res, time.Since(start))
	return res
}

func (p *Pipeline) dispatch(ctx context.Context, reply domain.Reply, target domain.DeliveryTarget) Result {
	if reply.Kind.Textual() {
		return p.sendText(ctx, reply.Content, target)
	}
	switch reply.Kind {
	case domain.ReplyVoice:
		return p.sendVoice(ctx, reply.Content, target)
	case domain.ReplyImageURL:
		return p.sendImageURL(ctx, reply.Content, target)
	case domain.ReplyImage:
		return p.sendImageStream(ctx, reply.Body, target)
	case domain.ReplyVideoURL:
		return p.sendVideo(ctx, reply.Content, target)
	case domain.ReplyApp:
		return p.sendApp(ctx, reply.Content, target)
	}
	return fail(FailureInvalid, ErrInvalidReply)
}

func (p *Pipeline) finish(ctx context.Context, target domain.DeliveryTarget, res Result, took time.Duration) {
	p.metrics.observe(res, took)

	if p.journal != nil {
		rec := store.Delivery{
			Kind:     string(res.Kind),
			Receiver: target.Receiver,
			Outcome:  res.Outcome(),
			Failure:  string(res.Failure),
			Segments: res.Segments,
			Duration: took,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := p.journal.Record(ctx, rec); err != nil {
			p.log.Warn().Err(err).Msg("failed to journal delivery")
		}
	}

	event := hooks.EventDeliverySent
	if !res.OK() {
		event = hooks.EventDeliveryFailed
	}
	data := map[string]any{
		"segments":    res.Segments,
		"duration_ms": took.Milliseconds(),
	}
	if res.Err != nil {
		data["failure"] = string(res.Failure)
		data["error"] = res.Err.Error()
	}
	p.emit(ctx, event, domain.Reply{Kind: res.Kind}, target, data)
}

func (p *Pipeline) emit(ctx context.Context, event string, reply domain.Reply, target domain.DeliveryTarget, extra map[string]any) {
	if p.hooks == nil {
		return
	}
	data := map[string]any{
		"kind":     string(reply.Kind),
		"receiver": target.Receiver,
	}
	for k, v := range extra {
		data[k] = v
	}
	p.hooks.Emit(ctx, event, data)
}

// mediaURL is where the provider will fetch path from.
func (p *Pipeline) mediaURL(path string) string {
	return MediaURL(p.callbackURL, p.workDir, path)
}

// onceCloser lets both the image path and Send close a reply body.
type onceCloser struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() { c.err = c.ReadCloser.Close() })
	return c.err
}

// providerFailure wraps an error from a provider call, telling a gateway
// that could not be reached apart from one that refused the request.
func providerFailure(op string, err error) Result {
	if gewe.IsNetworkError(err) {
		return fail(FailureNetwork, fmt.Errorf("%s: gateway unreachable: %w", op, err))
	}
	return fail(FailureNetwork, fmt.Errorf("%s: rejected by gateway: %w", op, err))
}
