package ap2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticationMiddlewareRequiresAuthorizationHeader(t *testing.T) {
	t.Parallel()

	handler := NewCredentialHandler(nil, WithAuthenticator(AuthenticatorFunc(func(ctx context.Context, key string) error {
		return nil
	})))

	req := newTokenHTTPRequest(t)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload Error
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != MissingAuthorization {
		t.Fatalf("expected error code %s got %s", MissingAuthorization, payload.Code)
	}
}

func TestAuthenticationMiddlewareValidatesBearerFormat(t *testing.T) {
	t.Parallel()

	handler := NewCredentialHandler(nil, WithAuthenticator(AuthenticatorFunc(func(ctx context.Context, key string) error {
		return nil
	})))

	req := newTokenHTTPRequest(t)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	var payload Error
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != InvalidAuthorization {
		t.Fatalf("expected error code %s got %s", InvalidAuthorization, payload.Code)
	}
}

func TestAuthenticationMiddlewareRejectsInvalidAPIKey(t *testing.T) {
	t.Parallel()

	handler := NewCredentialHandler(nil, WithAuthenticator(AuthenticatorFunc(func(ctx context.Context, key string) error {
		return errors.New("invalid api key")
	})))

	req := newTokenHTTPRequest(t)
	req.Header.Set("Authorization", "Bearer bad-key")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	var payload Error
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != InvalidAuthorization {
		t.Fatalf("expected error code %s got %s", InvalidAuthorization, payload.Code)
	}
}

func TestAuthenticationMiddlewareSurfacesAuthenticatorErrors(t *testing.T) {
	t.Parallel()

	authErr := NewHTTPError(http.StatusServiceUnavailable, ServiceUnavailable, ErrorCode(ServiceUnavailable), "auth service unavailable")
	handler := NewCredentialHandler(nil, WithAuthenticator(AuthenticatorFunc(func(ctx context.Context, key string) error {
		return authErr
	})))

	req := newTokenHTTPRequest(t)
	req.Header.Set("Authorization", "Bearer auth-down")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	var payload Error
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Type != ServiceUnavailable {
		t.Fatalf("expected error type %s got %s", ServiceUnavailable, payload.Type)
	}
}

func TestAuthenticationMiddlewareAllowsValidRequests(t *testing.T) {
	t.Parallel()

	handler := NewCredentialHandler(nil, WithAuthenticator(AuthenticatorFunc(func(ctx context.Context, key string) error {
		if key != "valid-key" {
			return errors.New("invalid")
		}
		return nil
	})))

	req := newTokenHTTPRequest(t)
	req.Header.Set("Authorization", "Bearer valid-key")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
}

func newTokenHTTPRequest(t *testing.T) *http.Request {
	t.Helper()

	body, err := json.Marshal(TokenRequest{
		UserID:       "user_1",
		Amount:       4499,
		Currency:     "usd",
		MerchantName: "Desk Lamps Inc",
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/tokens", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
