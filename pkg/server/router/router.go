// Package router abstracts HTTP routing so handlers and middleware stay
// independent of the engine that dispatches them.
package router

import "net/http"

// Router registers handlers and middleware.
type Router interface {
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Group creates a route group with a common prefix and middleware.
	Group(prefix string, middleware ...MiddlewareFunc) Router

	// Use applies middleware to routes registered afterwards.
	Use(middleware ...MiddlewareFunc)

	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc handles a request. A returned error is turned into a 500 when
// nothing has been written yet.
type HandlerFunc func(Context) error

// MiddlewareFunc wraps a HandlerFunc.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context gives handlers engine-agnostic access to the request and response.
type Context interface {
	Request() *http.Request
	SetRequest(r *http.Request)

	Response() ResponseWriter
	SetResponse(w ResponseWriter)

	// Param returns a percent-decoded path parameter, e.g. :query.
	Param(name string) string

	// RawParam returns a path parameter exactly as it appeared in the request
	// path, still percent-encoded.
	RawParam(name string) string

	// Route returns the registered pattern that matched, e.g. /collections/groupby/:query.
	Route() string

	// Query returns a URL query parameter.
	Query(name string) string

	// Bind decodes a JSON request body into v.
	Bind(v interface{}) error

	JSON(code int, v interface{}) error
	String(code int, s string) error

	Get(key string) interface{}
	Set(key string, value interface{})
}

// ResponseWriter tracks the status written to the client.
type ResponseWriter interface {
	http.ResponseWriter

	Status() int
	Written() bool
}
