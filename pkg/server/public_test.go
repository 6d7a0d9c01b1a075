package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/server/router"
	ginrouter "github.com/nimburion/docquery/pkg/server/router/gin"
	"github.com/nimburion/docquery/pkg/testutil"
)

func TestPublicAPIServer_MiddlewareStack(t *testing.T) {
	log := &testutil.MockLogger{}
	r := ginrouter.NewRouter()
	NewPublicAPIServer(config.DefaultConfig().HTTP, r, log)

	r.GET("/panic", func(router.Context) error { panic("boom") })
	r.GET("/fail", func(router.Context) error { return errors.New("handler failed") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("panic status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("error status = %d", rec.Code)
	}
	if len(log.Entries()) == 0 {
		t.Error("requests were not logged")
	}
}

func TestPublicAPIServer_RateLimit(t *testing.T) {
	defaults := config.DefaultConfig()
	r := ginrouter.NewRouter()
	NewPublicAPIServerWithConfig(defaults.HTTP, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}, defaults.Observability, r, &testutil.MockLogger{})
	r.GET("/ok", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.RemoteAddr = "10.1.1.1:4000"
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestPublicAPIServer_RequestSizeLimit(t *testing.T) {
	defaults := config.DefaultConfig()
	httpCfg := defaults.HTTP
	httpCfg.MaxRequestSize = 16
	r := ginrouter.NewRouter()
	NewPublicAPIServerWithConfig(httpCfg, config.RateLimitConfig{}, defaults.Observability, r, &testutil.MockLogger{})
	r.POST("/echo", func(c router.Context) error {
		var body map[string]interface{}
		if err := c.Bind(&body); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestPublicAPIServer_Compression(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    string
	}{
		{name: "enabled", enabled: true, want: "gzip"},
		{name: "disabled", enabled: false, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defaults := config.DefaultConfig()
			httpCfg := defaults.HTTP
			httpCfg.Compression = tt.enabled
			httpCfg.CompressionMinSize = 32
			r := ginrouter.NewRouter()
			NewPublicAPIServerWithConfig(httpCfg, config.RateLimitConfig{}, defaults.Observability, r, &testutil.MockLogger{})
			r.GET("/big", func(c router.Context) error {
				return c.JSON(http.StatusOK, map[string]string{"results": strings.Repeat("x", 512)})
			})

			req := httptest.NewRequest(http.MethodGet, "/big", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if got := rec.Header().Get("Content-Encoding"); got != tt.want {
				t.Errorf("Content-Encoding = %q, want %q", got, tt.want)
			}
		})
	}
}
