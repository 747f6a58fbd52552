package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/document"
	"github.com/conneroisu/frontpage/internal/frontend"
	"github.com/conneroisu/frontpage/internal/metrics"
	"github.com/conneroisu/frontpage/internal/nonce"
	"github.com/conneroisu/frontpage/internal/tstree"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0, Environment: env},
		Security: config.SecurityConfig{EnableNonce: true},
	}
}

const inlineSetup = `
page: PAGE
page.:
  10: TEXT
  10.:
    value: Hello
  jsInline.:
    10: TEXT
    10.:
      value: var a = 1;
`

var cspNonce = regexp.MustCompile(`script-src [^;]*'nonce-([A-Za-z0-9_-]+)'`)

func newPageServer(t *testing.T, setup string) (*Server, *prometheus.Registry) {
	t.Helper()
	tree, err := tstree.ParseYAML([]byte(setup))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	srv := New(testConfig("development"), Options{Gatherer: reg})
	srv.Mount(frontend.NewHandler(frontend.Config{
		PublicDir: t.TempDir(),
		Locale:    document.MustParseLocale("en-US"),
	}, frontend.Options{
		Setup:     tstree.NewLive(tree),
		Metrics:   m,
		ErrorPage: srv.ErrorPage,
	}))
	return srv, reg
}

func TestSecurityMiddleware_Nonce(t *testing.T) {
	tests := []struct {
		name        string
		config      *SecurityConfig
		expectNonce bool
	}{
		{name: "default", config: SecurityConfigFor(""), expectNonce: true},
		{name: "development", config: SecurityConfigFor("development"), expectNonce: true},
		{name: "production", config: SecurityConfigFor("production"), expectNonce: true},
		{
			name: "nonce disabled",
			config: func() *SecurityConfig {
				c := SecurityConfigFor("")
				c.EnableNonce = false
				return c
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *nonce.Nonce
			handler := SecurityMiddleware(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = nonce.FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			csp := rec.Header().Get("Content-Security-Policy")
			require.NotEmpty(t, csp)
			assert.NotContains(t, csp, "'unsafe-eval'")
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

			if !tt.expectNonce {
				assert.Nil(t, seen)
				assert.NotContains(t, csp, "nonce-")
				return
			}
			require.NotNil(t, seen)
			assert.Contains(t, csp, "script-src 'self' 'nonce-"+seen.Value()+"'")
			assert.Contains(t, csp, "style-src 'self' 'nonce-"+seen.Value()+"'")
			assert.False(t, seen.Consumed(), "advertising the nonce must not consume it")
		})
	}
}

func TestSecurityMiddleware_UniqueNonces(t *testing.T) {
	handler := SecurityMiddleware(SecurityConfigFor(""))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		m := cspNonce.FindStringSubmatch(rec.Header().Get("Content-Security-Policy"))
		require.Len(t, m, 2)
		assert.False(t, seen[m[1]], "nonce reused: %s", m[1])
		seen[m[1]] = true
	}
}

func TestSecurityConfigFromAppConfig(t *testing.T) {
	cfg := testConfig("production")
	cfg.Security.EnableNonce = false
	cfg.Security.CSPReportURI = "/csp-report"

	sec := SecurityConfigFromAppConfig(cfg, nil)
	assert.False(t, sec.EnableNonce)
	assert.Equal(t, "DENY", sec.FrameOptions)
	assert.Equal(t, []string{"'self'", "'unsafe-inline'"}, sec.CSP.Sources("script-src"))
	assert.Equal(t, []string{"'self'", "'unsafe-inline'"}, sec.CSP.Sources("style-src"))

	csp := sec.CSP.Header(nil)
	assert.True(t, strings.HasPrefix(csp, "default-src 'self'; script-src"), csp)
	assert.Contains(t, csp, "frame-ancestors 'none'")
	assert.Contains(t, csp, "upgrade-insecure-requests")
	assert.True(t, strings.HasSuffix(csp, "report-uri /csp-report"), csp)
	assert.Equal(t, "max-age=31536000; includeSubDomains; preload", sec.HSTS.String())
}

func TestPolicy_SetAndAdd(t *testing.T) {
	p := &Policy{}
	p.Set("img-src", "'self'")
	p.Add("img-src", "data:")
	p.Add("connect-src", "'self'")
	p.Set("img-src", "'none'")
	p.Set("worker-src")

	assert.Equal(t, "img-src 'none'; connect-src 'self'", p.Header(nil))

	n, err := nonce.New()
	require.NoError(t, err)
	p.Set("script-src")
	assert.Equal(t, "img-src 'none'; connect-src 'self'; script-src 'nonce-"+n.Value()+"'", p.Header(n))
	assert.Empty(t, p.Sources("script-src"), "the nonce is not stored in the policy")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5123"
	assert.Equal(t, "192.0.2.7", clientIP(r))
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	assert.Equal(t, "198.51.100.1", clientIP(r))
}

func TestServer_NonceMatchesPageOnReplay(t *testing.T) {
	srv, _ := newPageServer(t, inlineSetup)
	handler := srv.Handler()

	for i, wantCache := range []string{"miss", "hit"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, wantCache, rec.Header().Get("X-Frontpage-Cache"))

		m := cspNonce.FindStringSubmatch(rec.Header().Get("Content-Security-Policy"))
		require.Len(t, m, 2)
		assert.Contains(t, rec.Body.String(), `nonce="`+m[1]+`"`)
	}
}

func TestServer_Routes(t *testing.T) {
	srv, _ := newPageServer(t, inlineSetup)
	handler := srv.Handler()

	tests := []struct {
		name        string
		method      string
		target      string
		status      int
		contentType string
		contains    string
	}{
		{name: "page", method: http.MethodGet, target: "/", status: http.StatusOK, contentType: "text/html", contains: "Hello"},
		{name: "head", method: http.MethodHead, target: "/", status: http.StatusOK, contentType: "text/html"},
		{name: "health", method: http.MethodGet, target: "/health", status: http.StatusOK, contentType: "application/json", contains: `"status":"healthy"`},
		{name: "metrics", method: http.MethodGet, target: "/metrics", status: http.StatusOK, contains: "frontpage_pages_generated_total"},
		{name: "post rejected", method: http.MethodPost, target: "/", status: http.StatusMethodNotAllowed, contentType: "text/html", contains: "405 Method Not Allowed"},
		{name: "bad type", method: http.MethodGet, target: "/?type=abc", status: http.StatusBadRequest, contentType: "text/html", contains: "400 Bad Request"},
		{name: "unknown type", method: http.MethodGet, target: "/?type=7", status: http.StatusServiceUnavailable, contentType: "text/html", contains: "page type not configured"},
	}

	// The metrics route only lists a counter once it was written.
	warm := httptest.NewRecorder()
	handler.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/warm", nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.contentType != "" {
				assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.contentType),
					rec.Header().Get("Content-Type"))
			}
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
			if tt.method == http.MethodHead {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestServer_ErrorPageHidesDetailsInProduction(t *testing.T) {
	srv := New(testConfig("production"), Options{})
	rec := httptest.NewRecorder()
	srv.ErrorPage(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		http.StatusInternalServerError, errors.New("redis: connection <refused>"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "<title>500 Internal Server Error</title>")
	assert.NotContains(t, rec.Body.String(), "redis")

	dev := New(testConfig("development"), Options{})
	rec = httptest.NewRecorder()
	dev.ErrorPage(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		http.StatusInternalServerError, errors.New("redis: connection <refused>"))
	assert.Contains(t, rec.Body.String(), "redis: connection &lt;refused&gt;")
}

func TestServer_HealthChecks(t *testing.T) {
	srv := New(testConfig("development"), Options{Checks: map[string]HealthCheck{
		"cache": func(context.Context) error { return errors.New("unreachable") },
		"lock":  func(context.Context) error { return nil },
	}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"cache": "unreachable", "lock": "ok"}, body.Checks)
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, _ := newPageServer(t, inlineSetup)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server did not start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Hello")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, srv.Shutdown(ctx))
		}()
	}
	wg.Wait()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := New(testConfig("development"), Options{})
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Addr())
}
