package ap2

import (
	"context"
	"net/http"
	"strings"
)

// TokenPrefix is the required prefix of payment tokens issued by the
// credential provider.
const TokenPrefix = "tok_"

// AuthorizeRequest is the processor-side authorization payload. Amount is in
// minor currency units.
type AuthorizeRequest struct {
	Token      string `json:"token" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Currency   string `json:"currency" validate:"required,currency"`
	MerchantID string `json:"merchant_id" validate:"required"`
	// IntentMandate, when present, is verified independently of any checks
	// the merchant already performed.
	IntentMandate string `json:"intent_mandate,omitempty" validate:"omitempty,contains=~"`
}

// PaymentAuthorizer owns the actual money movement once a request has cleared
// token and mandate checks.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentAuthorization, error)
}

// PaymentAuthorizerFunc lifts bare functions into [PaymentAuthorizer].
type PaymentAuthorizerFunc func(ctx context.Context, req AuthorizeRequest) (*PaymentAuthorization, error)

// Authorize delegates to the wrapped function.
func (f PaymentAuthorizerFunc) Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentAuthorization, error) {
	return f(ctx, req)
}

// ProcessorHandler exposes the payment-processor authorization API over
// net/http. It repeats intent-mandate verification from scratch — the
// processor never trusts the merchant's prior check — but without an audience
// expectation, since the session identifier never reaches this side.
type ProcessorHandler struct {
	service PaymentAuthorizer
	mux     *http.ServeMux
	cfg     config
}

// NewProcessorHandler wires the authorize route to the provided [PaymentAuthorizer].
func NewProcessorHandler(service PaymentAuthorizer, opts ...Option) *ProcessorHandler {
	if service == nil {
		panic("processor: service is required")
	}
	cfg := newHandlerConfig(opts)
	h := &ProcessorHandler{
		service: service,
		mux:     http.NewServeMux(),
		cfg:     cfg,
	}
	var middleware []Middleware
	if mw := newSignatureMiddleware(signatureMiddlewareConfig{
		Verifier:      cfg.signatureVerifier,
		RequireSigned: cfg.requireSignedRequests,
		MaxClockSkew:  cfg.maxClockSkew,
		Clock:         cfg.clock,
	}); mw != nil {
		middleware = append(middleware, Middleware(mw))
	}
	if cfg.authenticator != nil {
		middleware = append(middleware, newAuthenticationMiddleware(cfg.authenticator))
	}
	middleware = append(middleware, cfg.middleware...)
	h.registerRoutes(middleware...)
	return h
}

// ServeHTTP satisfies http.Handler.
func (h *ProcessorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *ProcessorHandler) registerRoutes(middleware ...Middleware) {
	h.mux.HandleFunc("POST /authorize", applyMiddleware(h.handleAuthorize, middleware...))
}

func (h *ProcessorHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if !strings.HasPrefix(req.Token, TokenPrefix) {
		writeJSONError(w, NewHTTPError(http.StatusBadRequest, InvalidRequest, InvalidToken, "token must start with 'tok_'"))
		return
	}
	if req.IntentMandate != "" && h.cfg.verifier != nil {
		if err := h.cfg.verifier.VerifyIntentMandateAmount(r.Context(), req.IntentMandate, req.Amount, req.MerchantID); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	auth, err := h.service.Authorize(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auth)
}
