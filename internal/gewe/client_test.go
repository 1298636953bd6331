package gewe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	route string
	token string
	body  map[string]any
}

// fakeGateway answers every route with the value returned by reply.
func fakeGateway(t *testing.T, reply func(route string, body map[string]any) any) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, recorded{route: r.URL.Path, token: r.Header.Get(tokenHeader), body: body})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply(r.URL.Path, body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func ok(data any) map[string]any {
	return map[string]any{"ret": 200, "msg": "ok", "data": data}
}

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c, err := NewClient(baseURL+"/v2/api", token, config.ProxyConfig{}, 5*time.Second, logging.New(nil, "silent"))
	require.NoError(t, err)
	c.loginPoll = time.Millisecond
	return c
}

func TestGetToken(t *testing.T) {
	srv, calls := fakeGateway(t, func(string, map[string]any) any { return ok("tok-123") })
	c := newTestClient(t, srv.URL, "")

	token, err := c.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	require.Len(t, *calls, 1)
	assert.Equal(t, "/v2/api/tools/getTokenId", (*calls)[0].route)
	assert.Empty(t, (*calls)[0].token)
}

func TestPostTextSendsTokenAndBody(t *testing.T) {
	srv, calls := fakeGateway(t, func(string, map[string]any) any { return ok(nil) })
	c := newTestClient(t, srv.URL, "secret")
	c.SetAppID("wx_app")

	_, err := c.PostText(context.Background(), "room@chatroom", "hello", "wxid_alice")
	require.NoError(t, err)

	got := (*calls)[0]
	assert.Equal(t, "/v2/api/message/postText", got.route)
	assert.Equal(t, "secret", got.token)
	assert.Equal(t, "wx_app", got.body["appId"])
	assert.Equal(t, "room@chatroom", got.body["toWxid"])
	assert.Equal(t, "hello", got.body["content"])
	assert.Equal(t, "wxid_alice", got.body["ats"])
}

func TestPostVoiceAndVideoPayloads(t *testing.T) {
	srv, calls := fakeGateway(t, func(string, map[string]any) any { return ok(nil) })
	c := newTestClient(t, srv.URL, "secret")
	c.SetAppID("wx_app")
	ctx := context.Background()

	_, err := c.PostVoice(ctx, "wxid_bob", "http://cb:9919/?file=tmp/a.silk", 59980)
	require.NoError(t, err)
	_, err = c.PostVideo(ctx, "wxid_bob", "http://x/v.mp4", "http://cb:9919/?file=tmp/p.png", 12)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, float64(59980), (*calls)[0].body["voiceDuration"])
	assert.Equal(t, "http://cb:9919/?file=tmp/a.silk", (*calls)[0].body["voiceUrl"])
	assert.Equal(t, "/v2/api/message/postVideo", (*calls)[1].route)
	assert.Equal(t, float64(12), (*calls)[1].body["videoDuration"])
	assert.Equal(t, "http://cb:9919/?file=tmp/p.png", (*calls)[1].body["thumbUrl"])
}

func TestNon200RetIsProviderError(t *testing.T) {
	srv, _ := fakeGateway(t, func(string, map[string]any) any {
		return map[string]any{"ret": 500, "msg": "device offline"}
	})
	c := newTestClient(t, srv.URL, "secret")
	c.SetAppID("wx_app")

	_, err := c.PostImage(context.Background(), "wxid_bob", "http://cb/?file=tmp/a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "device offline")
	assert.False(t, IsNetworkError(err))
}

func TestHTTPErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, "secret")
	c.SetAppID("wx_app")

	_, err := c.PostAppMessage(context.Background(), "wxid_bob", "<appmsg/>")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestInvalidRequestNeverSent(t *testing.T) {
	srv, calls := fakeGateway(t, func(string, map[string]any) any { return ok(nil) })
	c := newTestClient(t, srv.URL, "secret")

	// no app id yet
	_, err := c.PostText(context.Background(), "wxid_bob", "hi", "")
	require.Error(t, err)
	assert.Empty(t, *calls)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base, "secret")
	c.SetAppID("wx_app")
	_, err := c.PostText(context.Background(), "wxid_bob", "hi", "")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestLoginAlreadyOnline(t *testing.T) {
	srv, calls := fakeGateway(t, func(route string, _ map[string]any) any { return ok(true) })
	c := newTestClient(t, srv.URL, "secret")

	appID, err := c.Login(context.Background(), "wx_app")
	require.NoError(t, err)
	assert.Equal(t, "wx_app", appID)
	assert.Equal(t, "wx_app", c.AppID())
	assert.Len(t, *calls, 1)
}

func TestLoginPollsUntilConfirmed(t *testing.T) {
	var polls atomic.Int32
	srv, _ := fakeGateway(t, func(route string, _ map[string]any) any {
		switch route {
		case "/v2/api/login/getLoginQrCode":
			return ok(map[string]any{"appId": "wx_new", "uuid": "u-1", "qrData": "http://weixin.qq.com/x/abc"})
		case "/v2/api/login/checkLogin":
			if polls.Add(1) < 3 {
				return ok(map[string]any{"uuid": "u-1", "status": 0})
			}
			return ok(map[string]any{"uuid": "u-1", "status": 2, "loginInfo": map[string]any{"wxid": "wxid_bot", "nickName": "bot"}})
		}
		return ok(nil)
	})
	c := newTestClient(t, srv.URL, "secret")

	appID, err := c.Login(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "wx_new", appID)
	assert.Equal(t, int32(3), polls.Load())
}

func TestLoginGivesUp(t *testing.T) {
	srv, _ := fakeGateway(t, func(route string, _ map[string]any) any {
		if route == "/v2/api/login/getLoginQrCode" {
			return ok(map[string]any{"appId": "wx_new", "uuid": "u-1"})
		}
		return ok(map[string]any{"status": 1})
	})
	c := newTestClient(t, srv.URL, "secret")
	c.loginAttempts = 2

	_, err := c.Login(context.Background(), "")
	assert.Error(t, err)
}

func TestSetCallbackValidatesURL(t *testing.T) {
	srv, calls := fakeGateway(t, func(string, map[string]any) any { return ok(nil) })
	c := newTestClient(t, srv.URL, "secret")

	require.Error(t, c.SetCallback(context.Background(), "secret", "not a url"))
	require.NoError(t, c.SetCallback(context.Background(), "secret", "http://10.0.0.2:9919/v2/api/callback/collect"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "http://10.0.0.2:9919/v2/api/callback/collect", (*calls)[0].body["callbackUrl"])
}

func TestProxyFuncHonorsNoProxy(t *testing.T) {
	pu, _ := url.Parse("http://proxy:3128")
	fn := proxyFunc(pu, []string{"127.0.0.1:2531", "localhost", ".internal"})

	cases := map[string]bool{
		"http://127.0.0.1:2531/v2/api": false,
		"http://localhost:8080/":       false,
		"http://gw.internal/":          false,
		"http://example.com/":          true,
	}
	for raw, proxied := range cases {
		req, _ := http.NewRequest(http.MethodGet, raw, nil)
		got, err := fn(req)
		require.NoError(t, err)
		if proxied {
			assert.Equal(t, pu, got, raw)
		} else {
			assert.Nil(t, got, raw)
		}
	}
}
