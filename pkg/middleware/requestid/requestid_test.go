package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/docquery/pkg/server/router"
	ginrouter "github.com/nimburion/docquery/pkg/server/router/gin"
)

func newTestRouter(seen *string) router.Router {
	r := ginrouter.NewRouter()
	r.Use(RequestID())
	r.GET("/test", func(c router.Context) error {
		*seen = GetRequestID(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	return r
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	r := newTestRouter(&seen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	header := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(header); err != nil {
		t.Fatalf("generated request ID %q is not a UUID: %v", header, err)
	}
	if seen != header {
		t.Errorf("context request ID = %q, header = %q", seen, header)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if got := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}

// Property 7: Request ID preservation
// A caller-supplied X-Request-ID is echoed unchanged and visible to handlers.
func TestProperty_RequestIDPreserved(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("incoming request ID is preserved", prop.ForAll(
		func(id string) bool {
			var seen string
			r := newTestRouter(&seen)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(RequestIDHeader, id)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			return rec.Header().Get(RequestIDHeader) == id && seen == id
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
