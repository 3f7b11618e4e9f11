package ap2

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentpay/ap2/signature"
)

func TestSignatureMiddlewareAllowsValidRequest(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ts := time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC)
	handler := NewCheckoutHandler(&stubCheckoutService{
		create: func(ctx context.Context, req CheckoutSessionCreateRequest) (*CheckoutSession, error) {
			return testSession(), nil
		},
	}, WithSignatureVerifier(signature.HMACVerifier{Key: key}), withClock(func() time.Time {
		return ts.Add(30 * time.Second)
	}))

	body := []byte(`{"items":[{"product_id":"prod_1","quantity":1}]}`)
	canonical, err := signature.CanonicalizeJSONBody(body)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/checkout_sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", signature.Sign(key, ts, canonical))
	req.Header.Set("Timestamp", ts.Format(time.RFC3339Nano))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSignatureMiddlewareRejectsInvalidSignature(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ts := time.Now().UTC()
	handler := NewCheckoutHandler(&stubCheckoutService{
		create: func(ctx context.Context, req CheckoutSessionCreateRequest) (*CheckoutSession, error) {
			return testSession(), nil
		},
	}, WithSignatureVerifier(signature.HMACVerifier{Key: key}), withClock(func() time.Time {
		return ts
	}))

	body := []byte(`{"items":[{"product_id":"prod_1","quantity":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout_sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", "bogus")
	req.Header.Set("Timestamp", ts.Format(time.RFC3339Nano))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestSignatureMiddlewareRejectsSkew(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ts := time.Now().UTC()
	handler := NewCheckoutHandler(&stubCheckoutService{
		create: func(ctx context.Context, req CheckoutSessionCreateRequest) (*CheckoutSession, error) {
			return testSession(), nil
		},
	}, WithSignatureVerifier(signature.HMACVerifier{Key: key}), WithMaxClockSkew(time.Minute), withClock(func() time.Time {
		return ts.Add(2 * time.Minute)
	}))

	body := []byte(`{"items":[{"product_id":"prod_1","quantity":1}]}`)
	canonical, err := signature.CanonicalizeJSONBody(body)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/checkout_sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", signature.Sign(key, ts, canonical))
	req.Header.Set("Timestamp", ts.Format(time.RFC3339Nano))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if want, got := "stale_timestamp", getErrorCode(rec.Body.Bytes()); want != got {
		t.Fatalf("expected code %s got %s", want, got)
	}
}

func TestSignatureMiddlewareRequiresHeadersWhenEnforced(t *testing.T) {
	t.Parallel()

	handler := NewCheckoutHandler(&stubCheckoutService{
		get: func(ctx context.Context, id string) (*CheckoutSession, error) {
			return testSession(), nil
		},
	}, WithSignatureVerifier(signature.HMACVerifier{Key: []byte("secret")}), WithRequireSignedRequests(), withClock(time.Now))

	req := httptest.NewRequest(http.MethodGet, "/checkout_sessions/cs_1", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if want, got := "signature_required", getErrorCode(rec.Body.Bytes()); want != got {
		t.Fatalf("expected code %s got %s", want, got)
	}
}

func getErrorCode(body []byte) string {
	var resp Error
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return string(resp.Code)
}
