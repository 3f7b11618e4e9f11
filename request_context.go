package ap2

import (
	"context"
	"net/http"
	"strings"
)

// RequestContext captures the protocol headers of an incoming request.
type RequestContext struct {
	// API Key used to make requests
	//
	// Example: Bearer api_key_123
	Authorization string
	// Information about the client making this request
	//
	// Example: ShoppingAgent/2.0 (Mac OS X 15.0.1; arm64)
	UserAgent string
	// Key used to ensure requests are idempotent
	IdempotencyKey string
	// Unique key for each request for tracing purposes
	RequestID string
	// Base64 encoded signature of the request body
	Signature string
	// Formatted as an RFC 3339 string.
	Timestamp string
	// API version
	//
	// Example: 2026-01-11
	APIVersion string
}

func requestContextFromRequest(r *http.Request) *RequestContext {
	return &RequestContext{
		Authorization:  strings.TrimSpace(r.Header.Get("Authorization")),
		UserAgent:      strings.TrimSpace(r.Header.Get("User-Agent")),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		RequestID:      strings.TrimSpace(r.Header.Get("Request-Id")),
		Signature:      strings.TrimSpace(r.Header.Get("Signature")),
		Timestamp:      strings.TrimSpace(r.Header.Get("Timestamp")),
		APIVersion:     strings.TrimSpace(r.Header.Get("API-Version")),
	}
}

type requestContextKey struct{}

func contextWithRequestContext(ctx context.Context, requestCtx *RequestContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if requestCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, requestContextKey{}, requestCtx)
}

// RequestContextFromContext extracts the HTTP request metadata previously stored in the context.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	if requestCtx, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return requestCtx
	}
	return nil
}
