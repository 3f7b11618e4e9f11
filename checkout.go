package ap2

import (
	"context"
	"net/http"
)

// CheckoutProvider is implemented by business logic that owns checkout sessions.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req CheckoutSessionCreateRequest) (*CheckoutSession, error)
	GetSession(ctx context.Context, id string) (*CheckoutSession, error)
	UpdateSession(ctx context.Context, id string, req CheckoutSessionUpdateRequest) (*CheckoutSession, error)
	CompleteSession(ctx context.Context, id string, req CheckoutSessionCompleteRequest) (*CheckoutSession, error)
}

// CheckoutHandler wires the AP2 checkout routes to a [CheckoutProvider].
// When a [Verifier] with a merchant key is configured via
// [WithMandateVerifier], every checkout response is signed with the
// merchant's detached authorization, and mandates presented at completion are
// verified before the provider runs.
type CheckoutHandler struct {
	service    CheckoutProvider
	mux        *http.ServeMux
	cfg        config
	merchantID string
}

// WithMerchantID sets the identifier matched against intent-mandate
// merchant allow-lists.
func WithMerchantID(id string) Option {
	return func(cfg *config) {
		cfg.merchantID = id
	}
}

// NewCheckoutHandler builds a [CheckoutHandler] backed by net/http's ServeMux.
func NewCheckoutHandler(service CheckoutProvider, opts ...Option) *CheckoutHandler {
	if service == nil {
		panic("checkout: service is required")
	}
	cfg := newHandlerConfig(opts)
	h := &CheckoutHandler{
		service:    service,
		mux:        http.NewServeMux(),
		cfg:        cfg,
		merchantID: cfg.merchantID,
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
func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestCtx := requestContextFromRequest(r)
	ctx := contextWithRequestContext(r.Context(), requestCtx)
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (h *CheckoutHandler) registerRoutes(middleware ...Middleware) {
	h.mux.HandleFunc("POST /checkout_sessions", applyMiddleware(h.handleCreate, middleware...))
	h.mux.HandleFunc("GET /checkout_sessions/{id}", applyMiddleware(h.handleGet, middleware...))
	h.mux.HandleFunc("POST /checkout_sessions/{id}", applyMiddleware(h.handleUpdate, middleware...))
	h.mux.HandleFunc("POST /checkout_sessions/{id}/complete", applyMiddleware(h.handleComplete, middleware...))
}

func (h *CheckoutHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CheckoutSessionCreateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	session, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.signResponse(session); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *CheckoutHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("checkout_session_id is required"))
		return
	}
	session, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.signResponse(session); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *CheckoutHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("checkout_session_id is required"))
		return
	}
	var req CheckoutSessionUpdateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	session, err := h.service.UpdateSession(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.signResponse(session); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *CheckoutHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("checkout_session_id is required"))
		return
	}
	var req CheckoutSessionCompleteRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := h.verifyMandates(r.Context(), id, req); err != nil {
		writeServiceError(w, err)
		return
	}
	session, err := h.service.CompleteSession(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.signResponse(session); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// verifyMandates runs mandate verification against the live session before
// the provider completes it. Each mandate kind is checked independently; the
// first rejection wins.
func (h *CheckoutHandler) verifyMandates(ctx context.Context, id string, req CheckoutSessionCompleteRequest) error {
	if h.cfg.verifier == nil || (req.CheckoutMandate == "" && req.IntentMandate == "") {
		return nil
	}
	session, err := h.service.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if req.CheckoutMandate != "" {
		if err := h.cfg.verifier.VerifyCheckoutMandate(ctx, req.CheckoutMandate, session); err != nil {
			return err
		}
	}
	if req.IntentMandate != "" {
		if err := h.cfg.verifier.VerifyIntentMandate(ctx, req.IntentMandate, session, h.merchantID); err != nil {
			return err
		}
	}
	return nil
}

// signResponse attaches the merchant authorization when signing is configured.
func (h *CheckoutHandler) signResponse(session *CheckoutSession) error {
	if h.cfg.verifier == nil || h.cfg.verifier.merchantKey == nil || session == nil {
		return nil
	}
	session.AP2 = nil
	return h.cfg.verifier.SignCheckout(session)
}
