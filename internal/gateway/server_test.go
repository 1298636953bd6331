package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/delivery"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackPath = "/v2/api/callback/collect"

type recordingWebhook struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (h *recordingWebhook) HandleCallback(_ context.Context, body []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bodies = append(h.bodies, string(body))
	return h.err
}

type fixture struct {
	srv     *Server
	ts      *httptest.Server
	workDir string
	root    string
	webhook *recordingWebhook
}

func newFixture(t *testing.T, opts ...ServerOption) *fixture {
	t.Helper()
	workDir := t.TempDir()
	root := filepath.Join(workDir, "tmp")
	require.NoError(t, os.MkdirAll(root, 0o755))

	cfg := config.Defaults()
	cfg.Gewe.CallbackURL = "http://127.0.0.1:9919" + callbackPath

	wh := &recordingWebhook{}
	opts = append([]ServerOption{WithWebhook(wh), WithWorkDir(workDir)}, opts...)
	srv := New(cfg, root, logging.New(nil, "silent"), opts...)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, ts: ts, workDir: workDir, root: root, webhook: wh}
}

func (f *fixture) get(t *testing.T, file string) (*http.Response, string) {
	t.Helper()
	u := f.ts.URL + callbackPath
	if file != "" {
		u += "?file=" + url.QueryEscape(file)
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.workDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLiveness(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, livenessText, body)
}

func TestServesFileInsideTempRoot(t *testing.T) {
	f := newFixture(t)
	abs := f.write(t, "tmp/voice_1.silk", "#!SILK_V3data")

	resp, body := f.get(t, "tmp/voice_1.silk")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#!SILK_V3data", body)

	resp, body = f.get(t, abs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#!SILK_V3data", body)
}

func TestServesMediaURLBuiltFromAnotherWorkingDirectory(t *testing.T) {
	f := newFixture(t)
	staged := f.write(t, "tmp/voice_a+b 1.silk", "#!SILK_V3seg")

	// The sender runs elsewhere but shares the base directory with the server.
	prevWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prevWD) })
	u := delivery.MediaURL(f.ts.URL+callbackPath, f.workDir, staged)

	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#!SILK_V3seg", string(body))
}

func TestRejectsPathsOutsideTempRoot(t *testing.T) {
	f := newFixture(t)
	secret := f.write(t, "secret.txt", "nope")
	f.write(t, "tmpfoo/x.png", "sibling")

	for _, file := range []string{
		"secret.txt",
		"tmp/../secret.txt",
		"tmp/../../etc/passwd",
		"../secret.txt",
		"/etc/passwd",
		secret,
		"tmpfoo/x.png",
		"tmp",
		"tmp/",
	} {
		resp, body := f.get(t, file)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "file=%s", file)
		assert.NotEqual(t, "nope", body)
	}
}

func TestMissingFileIsNotFound(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "tmp/gone.silk")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "sub"), 0o755))
	resp, _ = f.get(t, "tmp/sub")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSymlinkOutOfRootIsForbidden(t *testing.T) {
	f := newFixture(t)
	secret := f.write(t, "secret.txt", "nope")
	require.NoError(t, os.Symlink(secret, filepath.Join(f.root, "link.png")))

	resp, _ := f.get(t, "tmp/link.png")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookAlwaysAnswersSuccess(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.ts.URL+callbackPath, "application/json", strings.NewReader(`{"TypeName":"AddMsg"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", string(body))

	f.webhook.mu.Lock()
	f.webhook.err = errors.New("bad payload")
	f.webhook.mu.Unlock()
	resp, err = http.Post(f.ts.URL+callbackPath, "application/json", strings.NewReader(`garbage`))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "success", string(body))

	f.webhook.mu.Lock()
	defer f.webhook.mu.Unlock()
	assert.Equal(t, []string{`{"TypeName":"AddMsg"}`, "garbage"}, f.webhook.bodies)
}

func TestOtherMethodsRejected(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+callbackPath, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthAndNotFound(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)

	resp, err = http.Get(f.ts.URL + "/elsewhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "gewebridge_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	f := newFixture(t, WithMetrics(reg))
	resp, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "gewebridge_test_total 1")
}

func TestRootCallbackPath(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gewe.CallbackURL = "http://127.0.0.1:9919"
	srv := New(cfg, t.TempDir(), logging.New(nil, "silent"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, livenessText, string(body))

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartSignalsReadyAndStops(t *testing.T) {
	hm := hooks.NewManager(logging.New(nil, "silent"))
	started := make(chan string, 1)
	hm.On(hooks.EventGatewayStart, "test", func(_ context.Context, p hooks.Payload) error {
		started <- p.Data["addr"].(string)
		return nil
	})

	cfg := config.Defaults()
	cfg.Gewe.CallbackURL = "http://127.0.0.1:9919" + callbackPath
	srv := New(cfg, t.TempDir(), logging.New(nil, "silent"), WithListenAddr("127.0.0.1:0"), WithHooks(hm))
	assert.Empty(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}
	assert.Equal(t, srv.Addr(), <-started)

	resp, err := http.Get("http://" + srv.Addr() + callbackPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "tmp")
	assert.True(t, within(root, filepath.Join(root, "a.png")))
	assert.True(t, within(root, filepath.Join(root, "x", "b.png")))
	assert.False(t, within(root, root))
	assert.False(t, within(root, filepath.Join(string(filepath.Separator), "srv", "tmpx", "a")))
	assert.False(t, within(root, filepath.Join(string(filepath.Separator), "srv", "a")))
}
