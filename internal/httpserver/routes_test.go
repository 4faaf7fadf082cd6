package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/storage"
)

func TestRoutePrefix(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RoutePrefix = "/api"
	env := newTestEnv(t, cfg)

	if rec := env.do(t, http.MethodGet, "/api/v1/songs", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected prefixed route to work, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/songs", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected unprefixed route to 404, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["routePrefix"] != "/api" {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/health", "", nil)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
}

func TestMetricsEndpoint_AdminKey(t *testing.T) {
	env := newTestEnv(t, testConfig())

	if rec := env.do(t, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/metrics", "", adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "musichub_") {
		t.Fatalf("expected musichub metrics in output")
	}
}

type failingPingStore struct {
	*storage.MemoryStore
}

func (failingPingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_StoreDown(t *testing.T) {
	router := chi.NewRouter()
	ConfigureRouter(router, Deps{
		Config: &config.Config{},
		Store:  failingPingStore{storage.NewMemoryStore()},
		Logger: zerolog.Nop(),
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "degraded" || body["store"] != "unreachable" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{
		PerUserEnabled: true,
		PerUserLimit:   2,
		PerUserWindow:  config.Duration{Duration: time.Minute},
	}
	env := newTestEnv(t, cfg)
	user := map[string]string{"X-User-ID": "user-1"}

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodGet, "/v1/songs", "", user); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := env.do(t, http.MethodGet, "/v1/songs", "", user)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if errorCode(t, rec) != "rate_limited" || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("unexpected limit response %s", rec.Body.String())
	}

	other := env.do(t, http.MethodGet, "/v1/songs", "", map[string]string{"X-User-ID": "user-2"})
	if other.Code != http.StatusOK {
		t.Fatalf("other users keep their own budget, got %d", other.Code)
	}

	admin := map[string]string{"X-User-ID": "user-1", "Authorization": "Bearer " + testAdminKey}
	if rec := env.do(t, http.MethodGet, "/v1/songs", "", admin); rec.Code != http.StatusOK {
		t.Fatalf("admin requests are exempt, got %d", rec.Code)
	}
}

func TestRequestID_FromLoggerMiddleware(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if id := rec.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req_") {
		t.Fatalf("expected generated req_ ID, got %q", id)
	}

	rec = env.do(t, http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "upstream-7"})
	if id := rec.Header().Get("X-Request-ID"); id != "upstream-7" {
		t.Fatalf("expected inbound ID to be echoed, got %q", id)
	}
}

func TestServer_Handler(t *testing.T) {
	srv := New(Deps{
		Config: &config.Config{Server: config.ServerConfig{Address: ":0", ReadTimeout: config.Duration{Duration: time.Second}}},
		Logger: zerolog.Nop(),
	})
	if srv.httpServer.ReadTimeout != time.Second || srv.httpServer.Addr != ":0" {
		t.Fatalf("server settings not applied")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
