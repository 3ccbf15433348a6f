package sessiongate

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate/internal/audit"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testGatewayConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = "gateway-test-signing-key"
	cfg.JWT.AccessTTL = time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Cookies.Secure = false
	return cfg
}

type gatewayFixture struct {
	gw     *Gateway
	server *httptest.Server
	mr     *miniredis.Miniredis
	clock  *testClock
	sink   *audit.ChannelSink
}

func newGatewayFixture(t *testing.T, mutate func(*Config)) *gatewayFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testGatewayConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := &testClock{now: time.Now()}
	sink := NewChannelSink(256)
	gw, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	return &gatewayFixture{gw: gw, server: srv, mr: mr, clock: clock, sink: sink}
}

func (f *gatewayFixture) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *gatewayFixture) postForm(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(f.server.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *gatewayFixture) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func credentials(email, pass string) url.Values {
	return url.Values{"email": {email}, "password": {pass}}
}

func (f *gatewayFixture) cookie(c *http.Client, name string) *http.Cookie {
	u, _ := url.Parse(f.server.URL)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestSignupLoginThenReadEmptyData(t *testing.T) {
	f := newGatewayFixture(t, nil)

	signup := f.client(t)
	resp := f.postForm(t, signup, "/signup", credentials("a@x.com", "p1"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.NotNil(t, f.cookie(signup, middleware.AccessCookie))
	assert.NotNil(t, f.cookie(signup, middleware.RefreshCookie))

	c := f.client(t)
	resp = f.postForm(t, c, "/login", credentials("A@X.com", "p1"))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = f.get(t, c, "/data")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Contains(t, body, "data")
	assert.Nil(t, body["data"])
}

func TestTamperedTokenIsUnauthorized(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	resp := f.postForm(t, c, "/signup", credentials("a@x.com", "p1"))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	access := f.cookie(c, middleware.AccessCookie).Value
	refresh := f.cookie(c, middleware.RefreshCookie).Value
	tamper := func(tok string) string {
		parts := strings.Split(tok, ".")
		parts[2] = strings.Repeat("A", len(parts[2]))
		return strings.Join(parts, ".")
	}

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/data", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: tamper(access)})
	req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: tamper(refresh)})

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Unauthorized"}, decodeBody(t, resp))
	assert.Equal(t, uint64(1), f.gw.MetricsSnapshot().Counters[MetricSessionRejected])
}

func TestMissingFieldsAndActorErrors(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	resp := f.postForm(t, c, "/signup", url.Values{"email": {"a@x.com"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Missing fields"}, decodeBody(t, resp))

	resp = f.postForm(t, c, "/login", credentials("ghost@x.com", "p1"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Invalid credentials"}, decodeBody(t, resp))

	resp = f.postForm(t, c, "/signup", credentials("a@x.com", "p1"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp = f.postForm(t, c, "/signup", credentials("A@x.com", "p2"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "User already exists"}, decodeBody(t, resp))

	snap := f.gw.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricSignupSuccess])
	assert.Equal(t, uint64(1), snap.Counters[MetricSignupDuplicate])
	assert.Equal(t, uint64(1), snap.Counters[MetricLoginFailure])
}

func TestDataRoundTripAndIsolation(t *testing.T) {
	f := newGatewayFixture(t, nil)

	alice := f.client(t)
	require.Equal(t, http.StatusFound, f.postForm(t, alice, "/signup", credentials("a@x.com", "p1")).StatusCode)
	bob := f.client(t)
	require.Equal(t, http.StatusFound, f.postForm(t, bob, "/signup", credentials("b@x.com", "p2")).StatusCode)

	resp := f.postForm(t, alice, "/data", url.Values{"key": {"data"}, "value": {"hello"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"ok":   true,
		"data": map[string]any{"key": "data", "value": "hello"},
	}, decodeBody(t, resp))

	resp = f.get(t, alice, "/data")
	assert.Equal(t, "hello", decodeBody(t, resp)["data"])

	resp = f.get(t, bob, "/data")
	assert.Nil(t, decodeBody(t, resp)["data"])

	resp = f.postForm(t, alice, "/data", url.Values{"key": {"color"}, "value": {"blue"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.get(t, alice, "/data?key=color")
	assert.Equal(t, "blue", decodeBody(t, resp)["data"])

	resp = f.postForm(t, alice, "/data", url.Values{"value": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Missing fields"}, decodeBody(t, resp))

	resp = f.postForm(t, alice, "/data", url.Values{"key": {"big"}, "value": {strings.Repeat("x", 70<<10)}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Failed to set data"}, decodeBody(t, resp))
}

func TestProtectedRoutesWithoutSession(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	for _, path := range []string{"/data", "/protected/profile"} {
		resp := f.get(t, c, path)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, map[string]any{"error": "Unauthorized"}, decodeBody(t, resp))
	}

	resp := f.postForm(t, c, "/data", url.Values{"key": {"k"}, "value": {"v"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileAndIndex(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	resp := f.get(t, c, "/")
	assert.Equal(t, map[string]any{"ok": true, "user": nil, "data": nil}, decodeBody(t, resp))

	require.Equal(t, http.StatusFound, f.postForm(t, c, "/signup", credentials("a@x.com", "p1")).StatusCode)
	require.Equal(t, http.StatusOK, f.postForm(t, c, "/data", url.Values{"key": {"data"}, "value": {"v1"}}).StatusCode)

	resp = f.get(t, c, "/protected/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.NotEmpty(t, user["id"])
	assert.NotContains(t, user, "password_hash")

	resp = f.get(t, c, "/")
	body = decodeBody(t, resp)
	assert.Equal(t, "v1", body["data"])
	assert.Equal(t, "a@x.com", body["user"].(map[string]any)["email"])
}

func TestExpiredAccessIsRefreshedOnNextRequest(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	require.Equal(t, http.StatusFound, f.postForm(t, c, "/signup", credentials("a@x.com", "p1")).StatusCode)
	before := f.cookie(c, middleware.AccessCookie).Value

	f.clock.Advance(2 * time.Minute)

	resp := f.get(t, c, "/data")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "refreshed request continues without identity")
	after := f.cookie(c, middleware.AccessCookie).Value
	assert.NotEqual(t, before, after)

	resp = f.get(t, c, "/data")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1), f.gw.MetricsSnapshot().Counters[MetricSessionRefreshed])
}

func TestPublishRefreshedIdentity(t *testing.T) {
	f := newGatewayFixture(t, func(cfg *Config) {
		cfg.Session.PublishRefreshedIdentity = true
	})
	c := f.client(t)

	require.Equal(t, http.StatusFound, f.postForm(t, c, "/signup", credentials("a@x.com", "p1")).StatusCode)
	f.clock.Advance(2 * time.Minute)

	resp := f.get(t, c, "/data")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	snap := f.gw.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricSessionRefreshed])
	assert.Equal(t, uint64(1), snap.Counters[MetricSessionAuthenticated])
}

func TestLogoutClearsCookies(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	require.Equal(t, http.StatusFound, f.postForm(t, c, "/signup", credentials("a@x.com", "p1")).StatusCode)
	resp := f.postForm(t, c, "/logout", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Nil(t, f.cookie(c, middleware.AccessCookie))
	assert.Nil(t, f.cookie(c, middleware.RefreshCookie))

	resp = f.get(t, c, "/data")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCookieAttributes(t *testing.T) {
	f := newGatewayFixture(t, func(cfg *Config) {
		cfg.Cookies.Secure = true
	})

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(credentials("a@x.com", "p1").Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, ck := range cookies {
		assert.True(t, ck.HttpOnly)
		assert.True(t, ck.Secure)
		assert.Equal(t, "/", ck.Path)
		assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
		assert.Zero(t, ck.MaxAge)
	}
}

func TestAuditTrail(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	require.Equal(t, http.StatusFound, f.postForm(t, c, "/signup", credentials("a@x.com", "p1")).StatusCode)
	require.Equal(t, http.StatusFound, f.postForm(t, c, "/logout", nil).StatusCode)

	var types []string
	timeout := time.After(2 * time.Second)
	for len(types) < 2 {
		select {
		case ev := <-f.sink.Events():
			types = append(types, ev.Type)
			assert.Equal(t, "a@x.com", ev.Email)
			assert.NotEmpty(t, ev.IP)
		case <-timeout:
			t.Fatalf("missing audit events, got %v", types)
		}
	}
	assert.Equal(t, []string{audit.TypeSignup, audit.TypeLogout}, types)
}

func TestHealth(t *testing.T) {
	f := newGatewayFixture(t, nil)
	c := f.client(t)

	resp := f.get(t, c, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.mr.Close()
	resp = f.get(t, c, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBuildRequiresRedisAndValidConfig(t *testing.T) {
	_, err := New().WithConfig(testGatewayConfig()).Build()
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testGatewayConfig()
	cfg.JWT.SigningKey = "short"
	_, err = New().WithConfig(cfg).WithRedis(rdb).Build()
	assert.Error(t, err)

	b := New().WithConfig(testGatewayConfig()).WithRedis(rdb)
	gw, err := b.Build()
	require.NoError(t, err)
	defer gw.Close()
	_, err = b.Build()
	assert.Error(t, err)
}
