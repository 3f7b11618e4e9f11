// Package ap2 implements the Agent Payments Protocol (AP2) mandate layer for
// Go: platform-issued, cryptographically bound permission tokens that let an
// autonomous agent or a user-present session authorize payment up to defined
// limits, verified independently by the merchant and the payment processor
// before money moves.
//
// # Mandates
//
// A mandate is an SD-JWT credential with key binding (see package
// [github.com/agentpay/ap2/sdjwt]) interpreted under one of two schemas. A
// checkout mandate is scoped to a single checkout session and embeds a
// snapshot of that session, including the merchant's own detached signature
// over it. An intent mandate is scoped to an authorization envelope carrying
// per-transaction, cumulative, and use-count limits plus a merchant
// allow-list, all in minor currency units.
//
// [NewVerifier] builds the verification engine. Merchants call
// [Verifier.SignCheckout] to attach their authorization to checkout
// responses, and [Verifier.VerifyCheckoutMandate] or
// [Verifier.VerifyIntentMandate] when completing a session. Processors run
// the same intent verification through [Verifier.VerifyIntentMandateAmount]
// without knowing the session identifier. Spend against intent limits is
// accounted in a [UsageLedger] so replayed presentations cannot bypass
// cumulative limits.
//
// # HTTP surfaces
//
// [NewCheckoutHandler], [NewProcessorHandler], and [NewCredentialHandler]
// expose the checkout, payment-authorization, and token-issuance contracts
// over net/http against caller-supplied providers. [KeysHandler] publishes a
// party's public keys in the JWKS shape [NewPlatformKeys] consumes. Handler
// options such as [WithSignatureVerifier] and [WithRequireSignedRequests]
// enforce canonical JSON request signatures and timestamp skew limits.
package ap2

// APIVersion is sent on every response and webhook.
const APIVersion = "2026-01-11"
