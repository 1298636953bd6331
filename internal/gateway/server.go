// Package gateway runs the callback listener the provider talks to: webhook
// events arrive by POST and staged media is fetched by GET on the same path.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/soyeahso/gewebridge/internal/logging"
)

// WebhookHandler consumes a raw callback body. It must not block on slow
// work; the provider expects a quick answer.
type WebhookHandler interface {
	HandleCallback(ctx context.Context, body []byte) error
}

// Server is the callback HTTP server.
type Server struct {
	cfg          config.Config
	log          *logging.Logger
	files        *fileServer
	callbackPath string
	listenAddr   string

	webhook WebhookHandler
	hooks   *hooks.Manager
	metrics prometheus.Gatherer

	ready     chan struct{}
	readyOnce sync.Once

	mu         sync.RWMutex
	addr       string
	startedAt  time.Time
	httpServer *http.Server
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithWebhook sets the handler for POSTed provider events.
func WithWebhook(h WebhookHandler) ServerOption {
	return func(s *Server) {
		s.webhook = h
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.metrics = g
	}
}

// WithListenAddr overrides the address derived from config.
func WithListenAddr(addr string) ServerOption {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// WithWorkDir sets the directory relative file parameters resolve against.
// Defaults to the process working directory.
func WithWorkDir(dir string) ServerOption {
	return func(s *Server) {
		s.files.workDir = dir
	}
}

// New creates a server that serves files only from tempRoot.
func New(cfg config.Config, tempRoot string, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:          cfg,
		log:          log.Sub("gateway"),
		callbackPath: cfg.CallbackPath(),
		listenAddr:   fmt.Sprintf("%s:%d", cfg.Server.Bind, cfg.ListenPort()),
		ready:        make(chan struct{}),
	}
	s.files = newFileServer(tempRoot, s.log)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is closed once the listener accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or "" before Start has listened.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc(s.callbackPath, s.handleCallback)
	if s.callbackPath != "/" {
		mux.HandleFunc("/", handleNotFound)
	}
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Info().
		Str("addr", s.Addr()).
		Str("path", s.callbackPath).
		Str("temp_root", s.files.root).
		Msg("callback server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": s.Addr()})
	}
	s.readyOnce.Do(func() { close(s.ready) })

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down callback server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
