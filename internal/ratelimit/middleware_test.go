package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.GlobalEnabled || cfg.GlobalLimit != 1000 {
		t.Errorf("unexpected global defaults: %+v", cfg)
	}
	if !cfg.PerUserEnabled || cfg.PerUserLimit != 60 {
		t.Errorf("unexpected per-user defaults: %+v", cfg)
	}
	if !cfg.PerIPEnabled || cfg.PerIPLimit != 120 {
		t.Errorf("unexpected per-IP defaults: %+v", cfg)
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RateLimitConfig{
		GlobalEnabled:  true,
		GlobalLimit:    10,
		GlobalWindow:   config.Duration{Duration: time.Second},
		PerUserEnabled: true,
		PerUserLimit:   5,
		PerUserWindow:  config.Duration{Duration: 2 * time.Second},
	}, nil)

	if cfg.GlobalLimit != 10 || cfg.GlobalWindow != time.Second {
		t.Errorf("global not mapped: %+v", cfg)
	}
	if cfg.PerUserLimit != 5 || cfg.PerUserWindow != 2*time.Second {
		t.Errorf("per-user not mapped: %+v", cfg)
	}
	if cfg.PerIPEnabled {
		t.Error("per-IP should stay disabled")
	}
}

func TestLimiters_Disabled(t *testing.T) {
	for name, mw := range map[string]func(http.Handler) http.Handler{
		"global": GlobalLimiter(Config{}),
		"user":   UserLimiter(Config{}),
		"ip":     IPLimiter(Config{}),
	} {
		handler := mw(okHandler())
		for i := 0; i < 50; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("%s request %d: expected 200, got %d", name, i, w.Code)
			}
		}
	}
}

func TestGlobalLimiter_EnforcesLimit(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	handler := GlobalLimiter(Config{
		GlobalEnabled: true,
		GlobalLimit:   5,
		GlobalWindow:  time.Minute,
		Metrics:       m,
	})(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0." + string(rune('1'+i)) + ":1000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	var body struct {
		Error struct {
			Code      string         `json:"code"`
			Retryable bool           `json:"retryable"`
			Details   map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "rate_limited" || !body.Error.Retryable {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Error.Details["limit_type"] != LimitGlobal {
		t.Errorf("limit_type = %v", body.Error.Details["limit_type"])
	}
	if got := testutil.ToFloat64(m.RateLimitHitsTotal.WithLabelValues(LimitGlobal)); got != 1 {
		t.Errorf("rate limit metric = %v, want 1", got)
	}
}

func TestUserLimiter_PerUser(t *testing.T) {
	handler := UserLimiter(Config{
		PerUserEnabled: true,
		PerUserLimit:   3,
		PerUserWindow:  time.Minute,
	})(okHandler())

	send := func(user string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		if user != "" {
			req.Header.Set(UserHeader, user)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		if code := send("alice"); code != http.StatusOK {
			t.Fatalf("alice request %d: got %d", i, code)
		}
	}
	if code := send("alice"); code != http.StatusTooManyRequests {
		t.Fatalf("alice over limit: got %d", code)
	}
	if code := send("bob"); code != http.StatusOK {
		t.Fatalf("bob should have a separate bucket, got %d", code)
	}
	// Anonymous requests fall back to the IP bucket.
	for i := 0; i < 3; i++ {
		if code := send(""); code != http.StatusOK {
			t.Fatalf("anonymous request %d: got %d", i, code)
		}
	}
	if code := send(""); code != http.StatusTooManyRequests {
		t.Fatalf("anonymous over limit: got %d", code)
	}
}

func TestUserFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
		want  string
	}{
		{"header", func(r *http.Request) { r.Header.Set(UserHeader, "u-header") }, "u-header"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "userId=u-query" }, "u-query"},
		{"header wins", func(r *http.Request) {
			r.Header.Set(UserHeader, "u-header")
			r.URL.RawQuery = "userId=u-query"
		}, "u-header"},
		{"none", func(*http.Request) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			tt.setup(req)
			if got := UserFromRequest(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPLimiter_EnforcesLimitWithExemption(t *testing.T) {
	handler := IPLimiter(Config{
		PerIPEnabled: true,
		PerIPLimit:   3,
		PerIPWindow:  time.Minute,
		Exempt:       func(r *http.Request) bool { return r.Header.Get("X-Exempt") == "1" },
	})(okHandler())

	send := func(ip string, exempt bool) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = ip
		if exempt {
			req.Header.Set("X-Exempt", "1")
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	ip := "192.168.1.100:54321"
	for i := 0; i < 3; i++ {
		if code := send(ip, false); code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, code)
		}
	}
	if code := send(ip, false); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send(ip, true); code != http.StatusOK {
		t.Fatalf("exempt request should pass, got %d", code)
	}
	if code := send("192.168.1.101:54321", false); code != http.StatusOK {
		t.Fatalf("different IP should pass, got %d", code)
	}
}
