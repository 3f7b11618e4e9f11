package ap2

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentpay/ap2/jws"
	"github.com/agentpay/ap2/sdjwt"
)

// extensionField is the session field excluded from merchant-signed content.
const extensionField = "ap2"

// mandateIDLen is the hex length of the truncated issuer-token hash used to
// key the usage ledger.
const mandateIDLen = 16

// Verifier is the mandate verification engine. It is safe for concurrent use;
// the only shared mutable state it touches is the injected [UsageLedger] and
// the [PlatformKeys] cache, both of which synchronize internally.
type Verifier struct {
	platform    *PlatformKeys
	ledger      *UsageLedger
	merchantKey *jws.Key
	clock       func() time.Time
}

// VerifierOption customizes a Verifier.
type VerifierOption func(*Verifier)

// WithMerchantKey supplies the merchant's signing identity. Required for
// signing checkout responses and for checkout-mandate verification; processor
// deployments that only verify intent mandates can omit it.
func WithMerchantKey(key *jws.Key) VerifierOption {
	return func(v *Verifier) {
		v.merchantKey = key
	}
}

// VerifierWithClock provides deterministic time in tests.
func VerifierWithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.clock = fn
	}
}

// NewVerifier builds a Verifier over explicit owned state. Nothing here is
// ambient: the trust store and ledger are injected handles with an
// init/serve/teardown lifecycle, so tests can run isolated instances
// concurrently.
func NewVerifier(platform *PlatformKeys, ledger *UsageLedger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		platform: platform,
		ledger:   ledger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(v)
	}
	return v
}

// MerchantJWK exports the merchant's public signing key.
func (v *Verifier) MerchantJWK() (jws.PublicKey, error) {
	if v.merchantKey == nil {
		return jws.PublicKey{}, errors.New("ap2: merchant key not configured")
	}
	return v.merchantKey.Public(), nil
}

// SignCheckout attaches ap2.merchant_authorization to the session: a detached
// JWS over the canonical session bytes with the ap2 field removed.
func (v *Verifier) SignCheckout(session *CheckoutSession) error {
	if v.merchantKey == nil {
		return errors.New("ap2: merchant key not configured")
	}
	canonical, err := canonicalSessionBytes(session)
	if err != nil {
		return err
	}
	token, err := jws.SignDetached(canonical, v.merchantKey)
	if err != nil {
		return err
	}
	if session.AP2 == nil {
		session.AP2 = &Extension{}
	}
	session.AP2.MerchantAuthorization = token
	return nil
}

// VerifyOwnAuthorization reports whether the session's merchant authorization
// was genuinely produced by this merchant over exactly this content.
func (v *Verifier) VerifyOwnAuthorization(session *CheckoutSession) bool {
	m, err := sessionMap(session)
	if err != nil {
		return false
	}
	return v.verifyAuthorizationMap(m)
}

// verifyAuthorizationMap runs the self-authorization check on a session in
// decoded-claims form, which is how checkout snapshots arrive inside mandates.
func (v *Verifier) verifyAuthorizationMap(session map[string]any) bool {
	if v.merchantKey == nil {
		return false
	}
	ext, _ := session[extensionField].(map[string]any)
	token, _ := ext["merchant_authorization"].(string)
	if token == "" {
		return false
	}
	unsigned := make(map[string]any, len(session))
	for k, val := range session {
		if k == extensionField {
			continue
		}
		unsigned[k] = val
	}
	canonical, err := jws.Canonicalize(unsigned)
	if err != nil {
		return false
	}
	return jws.VerifyDetached(token, canonical, v.merchantKey.Public())
}

// VerifyCheckoutMandate checks a session-scoped mandate: platform signature
// and key binding with the session id as audience, then scope (embedded
// session id and total must match the live session), then the embedded
// merchant authorization.
func (v *Verifier) VerifyCheckoutMandate(ctx context.Context, mandate string, session *CheckoutSession) error {
	active, ok := v.platform.Fetch(ctx).Active()
	if !ok {
		return NewMandateError(KeySourceUnavailable, "cannot fetch platform signing keys")
	}

	claims, err := sdjwt.Verify(mandate, active, &session.ID, sdjwt.WithClock(v.clock))
	if err != nil {
		return mandateRejection(err)
	}

	embedded, ok := claims["checkout"].(map[string]any)
	if !ok {
		return NewMandateError(ScopeMismatch, "mandate embeds no checkout")
	}
	if id, _ := embedded["id"].(string); id != session.ID {
		return NewMandateError(ScopeMismatch, "session id mismatch")
	}
	embeddedTotal, ok := nestedInt64(embedded, "totals", "total")
	if !ok || embeddedTotal != session.Totals.Total {
		return NewMandateError(ScopeMismatch, "total mismatch")
	}

	ext, _ := embedded[extensionField].(map[string]any)
	if auth, _ := ext["merchant_authorization"].(string); auth == "" {
		return NewMandateError(MerchantAuthorizationMissing, "mandate checkout carries no merchant authorization")
	}
	if !v.verifyAuthorizationMap(embedded) {
		return NewMandateError(MerchantAuthorizationInvalid, "embedded merchant authorization does not verify")
	}
	return nil
}

// VerifyIntentMandate runs the merchant-side intent flow: the key-binding
// audience must equal the session id, and the charge is the session total.
func (v *Verifier) VerifyIntentMandate(ctx context.Context, mandate string, session *CheckoutSession, merchantID string) error {
	return v.verifyIntent(ctx, mandate, &session.ID, session.Totals.Total, merchantID)
}

// VerifyIntentMandateAmount runs the processor-side intent flow. The
// processor never learns the session id, so the audience check is skipped;
// everything else repeats from scratch against its own ledger.
func (v *Verifier) VerifyIntentMandateAmount(ctx context.Context, mandate string, amountCents int64, merchantID string) error {
	return v.verifyIntent(ctx, mandate, nil, amountCents, merchantID)
}

func (v *Verifier) verifyIntent(ctx context.Context, mandate string, expectedAud *string, amountCents int64, merchantID string) error {
	active, ok := v.platform.Fetch(ctx).Active()
	if !ok {
		return NewMandateError(KeySourceUnavailable, "cannot fetch platform signing keys")
	}

	claims, err := sdjwt.Verify(mandate, active, expectedAud, sdjwt.WithClock(v.clock))
	if err != nil {
		return mandateRejection(err)
	}

	auth, _ := claims["authorization"].(map[string]any)
	if ids := stringList(auth, "merchant_ids"); len(ids) > 0 && !contains(ids, merchantID) {
		return NewMandateError(ScopeMismatch,
			fmt.Sprintf("merchant %s not in authorized merchants", merchantID))
	}

	limits := Limits{
		MaxAmount: optionalInt64(auth, "max_amount"),
		MaxTotal:  optionalInt64(auth, "max_total"),
		MaxUses:   optionalInt64(auth, "max_uses"),
	}
	// Per-transaction cap is a scope check; it must not touch the ledger.
	if limits.MaxAmount != nil && amountCents > *limits.MaxAmount {
		return NewMandateError(ScopeMismatch,
			fmt.Sprintf("amount %d exceeds max_amount %d", amountCents, *limits.MaxAmount))
	}

	issuerToken, kbToken, _ := strings.Cut(mandate, sdjwt.Separator)
	holderKey, ok := sdjwt.ConfirmationKey(claims)
	if !ok {
		return NewMandateError(MissingBindingKey, "issuer claims carry no cnf.jwk")
	}
	kbClaims, err := jws.VerifyCompact(kbToken, holderKey)
	if err != nil {
		return NewMandateError(MandateSignatureInvalid, "key-binding token did not verify")
	}
	if kbAmount := optionalInt64(kbClaims, "amount"); kbAmount != nil && *kbAmount != amountCents {
		return NewMandateError(ScopeMismatch,
			fmt.Sprintf("bound amount %d does not equal charged amount %d", *kbAmount, amountCents))
	}

	return v.ledger.CheckAndReserve(MandateID(issuerToken), amountCents, limits)
}

// MandateID derives the stable ledger key for a mandate: the truncated hex
// SHA-256 of the issuer token exactly as presented.
func MandateID(issuerToken string) string {
	sum := sha256.Sum256([]byte(issuerToken))
	return hex.EncodeToString(sum[:])[:mandateIDLen]
}

// mandateRejection maps a credential verification failure onto the typed
// mandate error codes. Anything unexpected degrades to format_invalid rather
// than escaping as a raw fault.
func mandateRejection(err error) *Error {
	var verr *sdjwt.VerificationError
	if !errors.As(err, &verr) {
		return NewMandateError(FormatInvalid, err.Error())
	}
	code := map[sdjwt.ErrorCode]ErrorCode{
		sdjwt.CodeFormatInvalid:       FormatInvalid,
		sdjwt.CodeSignatureInvalid:    MandateSignatureInvalid,
		sdjwt.CodeExpired:             MandateExpired,
		sdjwt.CodeMissingBindingKey:   MissingBindingKey,
		sdjwt.CodeAudienceMismatch:    AudienceMismatch,
		sdjwt.CodeBindingHashMismatch: BindingHashMismatch,
	}[verr.Code]
	if code == "" {
		code = FormatInvalid
	}
	return NewMandateError(code, verr.Detail)
}

// canonicalSessionBytes renders the session as canonical JSON with the ap2
// field removed; these are the exact bytes the merchant signs.
func canonicalSessionBytes(session *CheckoutSession) ([]byte, error) {
	m, err := sessionMap(session)
	if err != nil {
		return nil, err
	}
	delete(m, extensionField)
	return jws.Canonicalize(m)
}

// sessionMap converts a session to its decoded-claims form, preserving
// numeric literals via json.Number.
func sessionMap(session *CheckoutSession) (map[string]any, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("ap2: marshal session: %w", err)
	}
	return jws.DecodeMap(raw)
}

func nestedInt64(m map[string]any, outer, inner string) (int64, bool) {
	nested, ok := m[outer].(map[string]any)
	if !ok {
		return 0, false
	}
	val := optionalInt64(nested, inner)
	if val == nil {
		return 0, false
	}
	return *val, true
}

func optionalInt64(m map[string]any, name string) *int64 {
	if m == nil {
		return nil
	}
	switch val := m[name].(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil
		}
		return &n
	case int64:
		return &val
	case int:
		n := int64(val)
		return &n
	case float64:
		n := int64(val)
		return &n
	}
	return nil
}

func stringList(m map[string]any, name string) []string {
	if m == nil {
		return nil
	}
	raw, _ := m[name].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}
