// Package gewe is a client for the gewechat gateway HTTP API.
package gewe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/soyeahso/gewebridge/internal/version"
)

// ErrProvider is returned when the gateway answers with a ret other than 200.
var ErrProvider = errors.New("gewe: provider rejected request")

const (
	tokenHeader    = "X-GEWE-TOKEN"
	retOK          = 200
	defaultTimeout = 60 * time.Second
)

// Result is the envelope every gateway route responds with.
type Result struct {
	Ret  int             `json:"ret"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client talks to one gateway instance. The token and app id may change
// after bootstrap, so they are guarded.
type Client struct {
	baseURL  string
	http     *http.Client
	log      *logging.Logger
	validate *validator.Validate

	mu    sync.RWMutex
	token string
	appID string

	loginPoll     time.Duration
	loginAttempts int
}

// NewClient builds a client for baseURL (e.g. http://127.0.0.1:2531/v2/api).
// The proxy settings are fixed at construction.
func NewClient(baseURL, token string, proxy config.ProxyConfig, timeout time.Duration, log *logging.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy.URL != "" {
		pu, err := url.Parse(proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url: %w", err)
		}
		transport.Proxy = proxyFunc(pu, proxy.NoProxy)
	} else {
		transport.Proxy = nil
	}

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		http:          &http.Client{Timeout: timeout, Transport: transport},
		log:           log.Sub("gewe"),
		validate:      validator.New(),
		token:         token,
		loginPoll:     5 * time.Second,
		loginAttempts: 60,
	}, nil
}

// proxyFunc routes every request through pu except hosts matched by noProxy.
// Entries match the exact host, host:port, or any subdomain when prefixed
// with a dot.
func proxyFunc(pu *url.URL, noProxy []string) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		host := req.URL.Host
		hostname := req.URL.Hostname()
		for _, np := range noProxy {
			np = strings.TrimSpace(np)
			switch {
			case np == "":
				continue
			case np == host || np == hostname:
				return nil, nil
			case strings.HasPrefix(np, ".") && strings.HasSuffix(hostname, np):
				return nil, nil
			}
		}
		return pu, nil
	}
}

// Token returns the current API token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the API token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// AppID returns the device app id used for message routes.
func (c *Client) AppID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appID
}

// SetAppID sets the device app id.
func (c *Client) SetAppID(appID string) {
	c.mu.Lock()
	c.appID = appID
	c.mu.Unlock()
}

func (c *Client) postJSON(ctx context.Context, route string, body any) (*Result, error) {
	if body != nil {
		if err := c.validate.Struct(body); err != nil {
			var invalid *validator.InvalidValidationError
			if !errors.As(err, &invalid) {
				return nil, fmt.Errorf("%s: invalid request: %w", route, err)
			}
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if token := c.Token(); token != "" {
		req.Header.Set(tokenHeader, token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", route, err)
	}
	c.log.Debug().Str("route", route).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("gateway call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: http %d: %s", ErrProvider, route, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", route, err)
	}
	if res.Ret != retOK {
		return &res, fmt.Errorf("%w: %s: %s", ErrProvider, route, strings.TrimSpace(string(raw)))
	}
	return &res, nil
}

// IsNetworkError reports whether err came from the transport rather than
// from the gateway rejecting the call.
func IsNetworkError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
