package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/docquery/pkg/server/router"
	ginrouter "github.com/nimburion/docquery/pkg/server/router/gin"
)

func TestTokenBucketLimiter_PerKey(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 2)

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if limiter.Allow("a") {
		t.Error("third request should be throttled")
	}
	if !limiter.Allow("b") {
		t.Error("other key should have its own bucket")
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	r := ginrouter.NewRouter()
	r.Use(RateLimit(NewTokenBucketLimiter(1, 1), nil))
	r.GET("/x", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("Retry-After header missing")
	}
}

func TestExtractIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": " 4.4.4.4 "}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "3.3.3.3:1234", "3.3.3.3"},
		{"no port", nil, "unix", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ExtractIPFromRequest(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
