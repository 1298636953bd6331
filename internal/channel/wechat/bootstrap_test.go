package wechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/gewe"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu     sync.Mutex
	calls  []string
	tokens []string
	bodies map[string]map[string]any
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	g := &fakeGateway{bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		g.mu.Lock()
		g.calls = append(g.calls, r.URL.Path)
		g.tokens = append(g.tokens, r.Header.Get("X-GEWE-TOKEN"))
		g.bodies[r.URL.Path] = body
		g.mu.Unlock()

		var data any
		switch r.URL.Path {
		case "/tools/getTokenId":
			data = "tok-new"
		case "/login/checkOnline":
			data = true
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ret": 200, "msg": "ok", "data": data})
	}))
	t.Cleanup(srv.Close)
	return g, srv
}

func TestBootstrapFetchesAndSavesToken(t *testing.T) {
	g, srv := newFakeGateway(t)
	log := logging.New(nil, "silent")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gewe:\n  baseUrl: "+srv.URL+"\n  appId: wx_app\n"), 0o600))

	client, err := gewe.NewClient(srv.URL, "", config.ProxyConfig{}, time.Second, log)
	require.NoError(t, err)

	ready := make(chan struct{})
	close(ready)
	cfg := config.GeweConfig{BaseURL: srv.URL, AppID: "wx_app", CallbackURL: "http://127.0.0.1:9919/v2/api/callback/collect"}
	require.NoError(t, Bootstrap(context.Background(), client, cfg, cfgPath, ready, log))

	assert.Equal(t, "tok-new", client.Token())
	assert.Equal(t, "wx_app", client.AppID())

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, []string{"/tools/getTokenId", "/login/checkOnline", "/tools/setCallback"}, g.calls)
	assert.Equal(t, "tok-new", g.tokens[2])
	assert.Equal(t, "tok-new", g.bodies["/tools/setCallback"]["token"])
	assert.Equal(t, cfg.CallbackURL, g.bodies["/tools/setCallback"]["callbackUrl"])

	saved, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", saved.Gewe.Token)
	assert.Equal(t, "wx_app", saved.Gewe.AppID)
}

func TestBootstrapWaitsForServer(t *testing.T) {
	g, srv := newFakeGateway(t)
	log := logging.New(nil, "silent")
	client, err := gewe.NewClient(srv.URL, "tok", config.ProxyConfig{}, time.Second, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GeweConfig{AppID: "wx_app", CallbackURL: "http://127.0.0.1:9919/cb"}
	done := make(chan error, 1)
	go func() {
		done <- Bootstrap(ctx, client, cfg, filepath.Join(t.TempDir(), "config.yaml"), make(chan struct{}), log)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.NotContains(t, g.calls, "/tools/setCallback")
	assert.NotContains(t, g.calls, "/tools/getTokenId")
}
