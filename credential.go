package ap2

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TokenRequest asks the credential provider for a payment token scoped to an
// upcoming charge. Amount is in minor currency units.
type TokenRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	Currency     string `json:"currency" validate:"required,currency"`
	MerchantName string `json:"merchant_name" validate:"required"`
}

// TokenResponse is the issued payment credential.
type TokenResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CredentialProvider issues payment tokens.
type CredentialProvider interface {
	IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error)
}

// CredentialProviderFunc lifts bare functions into [CredentialProvider].
type CredentialProviderFunc func(ctx context.Context, req TokenRequest) (*TokenResponse, error)

// IssueToken delegates to the wrapped function.
func (f CredentialProviderFunc) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	return f(ctx, req)
}

// NewGatewayToken issues an opaque single-purpose payment token valid for ttl.
// It is the default issuance strategy for [NewCredentialHandler] when the
// provider is nil.
func NewGatewayToken(ttl time.Duration) *TokenResponse {
	return &TokenResponse{
		Token:     TokenPrefix + uuid.NewString(),
		Type:      "PAYMENT_GATEWAY",
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
}

// CredentialHandler exposes the credential provider token-issuance API.
type CredentialHandler struct {
	service CredentialProvider
	mux     *http.ServeMux
	cfg     config
}

// NewCredentialHandler wires the token route to the provided
// [CredentialProvider]. A nil service issues 30-minute gateway tokens.
func NewCredentialHandler(service CredentialProvider, opts ...Option) *CredentialHandler {
	if service == nil {
		service = CredentialProviderFunc(func(_ context.Context, _ TokenRequest) (*TokenResponse, error) {
			return NewGatewayToken(30 * time.Minute), nil
		})
	}
	cfg := newHandlerConfig(opts)
	h := &CredentialHandler{
		service: service,
		mux:     http.NewServeMux(),
		cfg:     cfg,
	}
	var middleware []Middleware
	if cfg.authenticator != nil {
		middleware = append(middleware, newAuthenticationMiddleware(cfg.authenticator))
	}
	middleware = append(middleware, cfg.middleware...)
	h.mux.HandleFunc("POST /tokens", applyMiddleware(h.handleIssueToken, middleware...))
	return h
}

// ServeHTTP satisfies http.Handler.
func (h *CredentialHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *CredentialHandler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	resp, err := h.service.IssueToken(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
