package ap2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestContextFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/checkout_sessions/cs_1", nil)
	req.Header.Set("Authorization", "Bearer api_key_123")
	req.Header.Set("User-Agent", "ShoppingAgent/2.0")
	req.Header.Set("Idempotency-Key", "idem_1")
	req.Header.Set("Request-Id", "req_1")
	req.Header.Set("API-Version", APIVersion)

	requestCtx := requestContextFromRequest(req)
	if requestCtx.Authorization != "Bearer api_key_123" {
		t.Errorf("authorization = %q", requestCtx.Authorization)
	}
	if requestCtx.IdempotencyKey != "idem_1" || requestCtx.RequestID != "req_1" {
		t.Errorf("request metadata = %+v", requestCtx)
	}
	if requestCtx.APIVersion != APIVersion {
		t.Errorf("api version = %q", requestCtx.APIVersion)
	}
}

func TestRequestContextRoundTrip(t *testing.T) {
	t.Parallel()

	requestCtx := &RequestContext{RequestID: "req_1"}
	ctx := contextWithRequestContext(context.Background(), requestCtx)
	if got := RequestContextFromContext(ctx); got == nil || got.RequestID != "req_1" {
		t.Errorf("got %+v", got)
	}
	if got := RequestContextFromContext(context.Background()); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestCheckoutHandlerInjectsRequestContext(t *testing.T) {
	t.Parallel()

	var seen *RequestContext
	stub := &stubCheckoutService{
		get: func(ctx context.Context, id string) (*CheckoutSession, error) {
			seen = RequestContextFromContext(ctx)
			return testSession(), nil
		},
	}
	handler := NewCheckoutHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/checkout_sessions/cs_1", nil)
	req.Header.Set("Request-Id", "req_42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen == nil || seen.RequestID != "req_42" {
		t.Errorf("request context = %+v", seen)
	}
}
