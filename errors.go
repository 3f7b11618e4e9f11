package ap2

import (
	"net/http"
	"time"
)

// ErrorType mirrors the AP2 error.type field.
type ErrorType string

const (
	InvalidRequest     ErrorType = "invalid_request"     // Missing or malformed field.
	MandateRejected    ErrorType = "mandate_rejected"    // A mandate failed verification.
	ProcessingError    ErrorType = "processing_error"    // Downstream gateway or network failure.
	RateLimitExceeded  ErrorType = "rate_limit_exceeded" // Too many requests.
	ServiceUnavailable ErrorType = "service_unavailable" // Temporary outage or maintenance.
)

// ErrorCode is a machine-readable identifier for the specific failure.
type ErrorCode string

// Request-level failure codes.
const (
	InvalidSignature     ErrorCode = "invalid_signature"     // Request signature is missing or does not match the payload.
	SignatureRequired    ErrorCode = "signature_required"    // Signed requests are required but headers were missing.
	StaleTimestamp       ErrorCode = "stale_timestamp"       // Timestamp skew exceeded the allowed window.
	MissingAuthorization ErrorCode = "missing_authorization" // Authorization header missing.
	InvalidAuthorization ErrorCode = "invalid_authorization" // Authorization header malformed or API key invalid.
	InvalidToken         ErrorCode = "invalid_token"         // Payment token failed basic validation.
)

// Mandate rejection codes. Every mandate presentation either fully verifies
// or is rejected with exactly one of these.
const (
	FormatInvalid                ErrorCode = "format_invalid"
	MandateSignatureInvalid      ErrorCode = "signature_invalid"
	MandateExpired               ErrorCode = "expired"
	MissingBindingKey            ErrorCode = "missing_binding_key"
	AudienceMismatch             ErrorCode = "audience_mismatch"
	BindingHashMismatch          ErrorCode = "binding_hash_mismatch"
	ScopeMismatch                ErrorCode = "scope_mismatch"
	MerchantAuthorizationMissing ErrorCode = "merchant_authorization_missing"
	MerchantAuthorizationInvalid ErrorCode = "merchant_authorization_invalid"
	LimitExceededUses            ErrorCode = "limit_exceeded_uses"
	LimitExceededTotal           ErrorCode = "limit_exceeded_total"
	KeySourceUnavailable         ErrorCode = "key_source_unavailable"
)

// Error represents a structured AP2 error payload.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   *string   `json:"param,omitempty"`

	status     int           `json:"-"`
	retryAfter time.Duration `json:"-"`
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// RetryAfter returns the duration clients should wait before retrying.
func (e *Error) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

type errorOption func(*Error)

// WithOffendingParam sets the JSON path for the field that triggered the error.
func WithOffendingParam(jsonPath string) errorOption {
	return func(er *Error) {
		er.Param = &jsonPath
	}
}

// WithStatusCode overrides the HTTP status code returned to the client.
func WithStatusCode(status int) errorOption {
	return func(er *Error) {
		er.status = status
	}
}

// WithRetryAfter specifies how long clients should wait before retrying.
func WithRetryAfter(d time.Duration) errorOption {
	return func(er *Error) {
		er.retryAfter = d
	}
}

// NewMandateError builds a mandate rejection carrying one of the typed reason
// codes. Rejections surface as 403 at the HTTP boundary; they are verification
// outcomes, not faults.
func NewMandateError(code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(MandateRejected, code, message, append([]errorOption{WithStatusCode(http.StatusForbidden)}, opts...)...)
}

// NewInvalidRequestError builds a Bad Request AP2 error payload.
func NewInvalidRequestError(message string, opts ...errorOption) *Error {
	return newError(InvalidRequest, ErrorCode(InvalidRequest), message, append([]errorOption{WithStatusCode(http.StatusBadRequest)}, opts...)...)
}

// NewProcessingError builds an Internal Server Error AP2 error payload.
func NewProcessingError(message string, opts ...errorOption) *Error {
	return newError(ProcessingError, ErrorCode(ProcessingError), message, append([]errorOption{WithStatusCode(http.StatusInternalServerError)}, opts...)...)
}

// NewServiceUnavailableError builds a Service Unavailable AP2 error payload.
func NewServiceUnavailableError(message string, opts ...errorOption) *Error {
	return newError(ServiceUnavailable, ErrorCode(ServiceUnavailable), message, append([]errorOption{WithStatusCode(http.StatusServiceUnavailable)}, opts...)...)
}

// NewHTTPError allows callers to control the status code explicitly.
func NewHTTPError(status int, typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(typ, code, message, append(opts, WithStatusCode(status))...)
}

// newError builds a typed error payload matching the AP2 schema.
func newError(typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	errPayload := &Error{
		Type:    typ,
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(errPayload)
	}
	return errPayload
}
