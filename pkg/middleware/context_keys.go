// Package middleware holds keys shared by the HTTP middleware packages.
package middleware

// ContextKey is a typed key for context values.
type ContextKey string

const (
	// RequestIDKey stores the request ID in both the request context and the router context.
	RequestIDKey ContextKey = "request_id"
)
