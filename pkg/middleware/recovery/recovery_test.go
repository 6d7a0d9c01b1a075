package recovery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/docquery/pkg/middleware/requestid"
	"github.com/nimburion/docquery/pkg/server/router"
	ginrouter "github.com/nimburion/docquery/pkg/server/router/gin"
	"github.com/nimburion/docquery/pkg/testutil"
)

func TestRecovery_Panic(t *testing.T) {
	log := &testutil.MockLogger{}
	r := ginrouter.NewRouter()
	r.Use(requestid.RequestID(), Recovery(log))
	r.GET("/panic", func(c router.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestid.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["request_id"] != "req-1" {
		t.Errorf("request_id = %q", body["request_id"])
	}

	entry, ok := log.Find("error", "panic recovered")
	if !ok {
		t.Fatal("panic not logged")
	}
	if entry.Fields["panic"] != "boom" {
		t.Errorf("panic field = %v", entry.Fields["panic"])
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	log := &testutil.MockLogger{}
	r := ginrouter.NewRouter()
	r.Use(Recovery(log))
	r.GET("/ok", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if n := len(log.Entries()); n != 0 {
		t.Errorf("unexpected log entries: %d", n)
	}
}
