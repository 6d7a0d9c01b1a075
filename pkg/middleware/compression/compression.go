// Package compression negotiates gzip or brotli encoding for response bodies.
package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/nimburion/docquery/pkg/server/router"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// Config controls response compression.
type Config struct {
	// MinSize is the smallest body, in bytes, that gets compressed.
	MinSize int
	// GzipLevel defaults to gzip.DefaultCompression when zero or out of range.
	GzipLevel int
	// BrotliLevel defaults to 4 when zero or out of range.
	BrotliLevel   int
	DisableBrotli bool
}

func (cfg Config) normalized() Config {
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if cfg.GzipLevel == 0 || cfg.GzipLevel < gzip.HuffmanOnly || cfg.GzipLevel > gzip.BestCompression {
		cfg.GzipLevel = gzip.DefaultCompression
	}
	if cfg.BrotliLevel <= 0 || cfg.BrotliLevel > brotli.BestCompression {
		cfg.BrotliLevel = 4
	}
	return cfg
}

// Middleware buffers the response until MinSize bytes are written, then
// compresses JSON and text bodies with the encoding the client prefers.
// Small bodies, bodiless statuses and already encoded bodies pass through.
func Middleware(cfg Config) router.MiddlewareFunc {
	cfg = cfg.normalized()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if req.Method == http.MethodHead {
				return next(c)
			}
			encoding := negotiate(req.Header.Get("Accept-Encoding"), !cfg.DisableBrotli)
			if encoding == "" {
				return next(c)
			}

			appendVary(c.Response().Header(), "Accept-Encoding")
			w := &compressWriter{base: c.Response(), encoding: encoding, cfg: cfg}
			c.SetResponse(w)
			defer w.Close()

			return next(c)
		}
	}
}

// negotiate picks br or gzip from an Accept-Encoding header. Brotli wins ties.
func negotiate(header string, allowBrotli bool) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	qualities := parseAcceptEncoding(header)

	quality := func(name string) float64 {
		if q, ok := qualities[name]; ok {
			return q
		}
		return qualities["*"]
	}

	best, bestQ := "", 0.0
	if allowBrotli {
		if q := quality(encodingBrotli); q > 0 {
			best, bestQ = encodingBrotli, q
		}
	}
	if q := quality(encodingGzip); q > bestQ {
		best = encodingGzip
	}
	return best
}

func parseAcceptEncoding(header string) map[string]float64 {
	out := make(map[string]float64)
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(strings.TrimSpace(part), ";")
		name := strings.ToLower(strings.TrimSpace(sections[0]))
		if name == "" {
			continue
		}
		q := 1.0
		for _, param := range sections[1:] {
			kv := strings.SplitN(strings.TrimSpace(param), "=", 2)
			if len(kv) != 2 || !strings.EqualFold(kv[0], "q") {
				continue
			}
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64); err == nil {
				q = parsed
			}
		}
		out[name] = q
	}
	return out
}

// compressWriter holds back the status line until it knows whether the body
// is worth compressing. Once decided, and after Close, writes go straight
// through to the chosen destination.
type compressWriter struct {
	base     router.ResponseWriter
	encoding string
	cfg      Config

	status  int
	decided bool
	encoder io.WriteCloser
	buf     bytes.Buffer
}

func (w *compressWriter) Header() http.Header {
	return w.base.Header()
}

func (w *compressWriter) WriteHeader(code int) {
	if w.decided {
		if w.encoder == nil {
			w.base.WriteHeader(code)
		}
		return
	}
	if w.status != 0 {
		return
	}
	w.status = code
	if !bodyAllowed(code) {
		w.decided = true
		w.base.WriteHeader(code)
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.decided {
		if w.encoder != nil {
			return w.encoder.Write(p)
		}
		return w.base.Write(p)
	}
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.buf.Write(p)
	if w.buf.Len() < w.cfg.MinSize {
		return len(p), nil
	}
	if err := w.decide(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *compressWriter) decide() error {
	w.decided = true
	if w.status == 0 {
		return nil
	}

	h := w.Header()
	if w.buf.Len() > 0 && w.buf.Len() >= w.cfg.MinSize && h.Get("Content-Encoding") == "" && compressible(h.Get("Content-Type")) {
		h.Del("Content-Length")
		h.Set("Content-Encoding", w.encoding)
		w.encoder = w.newEncoder()
	}
	w.base.WriteHeader(w.status)

	if w.buf.Len() == 0 {
		return nil
	}
	var err error
	if w.encoder != nil {
		_, err = w.encoder.Write(w.buf.Bytes())
	} else {
		_, err = w.base.Write(w.buf.Bytes())
	}
	w.buf.Reset()
	return err
}

func (w *compressWriter) newEncoder() io.WriteCloser {
	if w.encoding == encodingBrotli {
		return brotli.NewWriterLevel(w.base, w.cfg.BrotliLevel)
	}
	// Level was range-checked in normalized.
	gz, _ := gzip.NewWriterLevel(w.base, w.cfg.GzipLevel)
	return gz
}

// Close flushes whatever is buffered and finishes the compressed stream.
func (w *compressWriter) Close() error {
	if !w.decided {
		if err := w.decide(); err != nil {
			return err
		}
	}
	if w.encoder == nil {
		return nil
	}
	return w.encoder.Close()
}

func (w *compressWriter) Status() int {
	if w.status != 0 {
		return w.status
	}
	return w.base.Status()
}

func (w *compressWriter) Written() bool {
	return w.status != 0 || w.base.Written()
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

func compressible(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "" || strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/")
}

func appendVary(header http.Header, value string) {
	current := header.Get("Vary")
	if current == "" {
		header.Set("Vary", value)
		return
	}
	for _, part := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}
	header.Set("Vary", current+", "+value)
}
