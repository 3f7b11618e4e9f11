// Package sdjwt builds and verifies SD-JWT credentials with key binding
// (SD-JWT+kb): an issuer-signed claim set joined to a holder-signed
// key-binding proof by a tilde separator. The binding hash ties the proof to
// the exact issuer token presented, and the proof's signature must verify
// under the confirmation key named inside the issuer claims, which is what
// demonstrates the presenter possesses the bound key.
package sdjwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentpay/ap2/jws"
)

// Separator joins the issuer token and the key-binding token.
const Separator = "~"

// TypVerifiableCredential is the default issuer token type.
const TypVerifiableCredential = "vc+sd-jwt"

// TypKeyBinding is the fixed type of the key-binding token.
const TypKeyBinding = "kb+jwt"

// ErrorCode identifies why verification rejected a credential.
type ErrorCode string

const (
	CodeFormatInvalid       ErrorCode = "format_invalid"
	CodeSignatureInvalid    ErrorCode = "signature_invalid"
	CodeExpired             ErrorCode = "expired"
	CodeMissingBindingKey   ErrorCode = "missing_binding_key"
	CodeAudienceMismatch    ErrorCode = "audience_mismatch"
	CodeBindingHashMismatch ErrorCode = "binding_hash_mismatch"
)

// VerificationError is a typed rejection. It never indicates a process fault;
// a rejected credential is an expected outcome.
type VerificationError struct {
	Code   ErrorCode
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func reject(code ErrorCode, detail string) error {
	return &VerificationError{Code: code, Detail: detail}
}

type config struct {
	typ      string
	ttl      time.Duration
	clock    func() time.Time
	kbClaims map[string]any
}

// Option customizes credential creation and verification.
type Option func(*config)

// WithTyp overrides the issuer token's typ header.
func WithTyp(typ string) Option {
	return func(cfg *config) { cfg.typ = typ }
}

// WithTTL sets how long the credential stays valid after issuance.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) { cfg.ttl = ttl }
}

// WithClock provides deterministic time in tests.
func WithClock(fn func() time.Time) Option {
	return func(cfg *config) { cfg.clock = fn }
}

// WithKBClaim adds an extra claim to the key-binding token, such as the
// amount the holder committed to at binding time.
func WithKBClaim(name string, value any) Option {
	return func(cfg *config) {
		if cfg.kbClaims == nil {
			cfg.kbClaims = make(map[string]any)
		}
		cfg.kbClaims[name] = value
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		typ:   TypVerifiableCredential,
		ttl:   5 * time.Minute,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return cfg
}

// Sign issues a credential bound to the holder's key. The issuer token
// carries claims plus iat, exp, and cnf.jwk naming the holder's public key;
// the key-binding token carries the audience, a fresh nonce, and the hash of
// the issuer token, and is signed with the holder's private key.
func Sign(claims map[string]any, issuer, holder *jws.Key, audience string, opts ...Option) (string, error) {
	cfg := newConfig(opts)
	now := cfg.clock().Unix()

	issuerClaims := make(map[string]any, len(claims)+3)
	for k, v := range claims {
		issuerClaims[k] = v
	}
	issuerClaims["iat"] = now
	issuerClaims["exp"] = now + int64(cfg.ttl.Seconds())
	issuerClaims["cnf"] = map[string]any{"jwk": holder.Public().Confirmation()}

	issuerToken, err := jws.SignCompact(jws.Header{Alg: jws.AlgES256, Typ: cfg.typ, KID: issuer.KID()}, issuerClaims, issuer)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sdjwt: nonce: %w", err)
	}
	kbClaims := map[string]any{
		"aud":     audience,
		"iat":     now,
		"nonce":   base64.RawURLEncoding.EncodeToString(nonce),
		"sd_hash": bindingHash(issuerToken),
	}
	for k, v := range cfg.kbClaims {
		kbClaims[k] = v
	}
	kbToken, err := jws.SignCompact(jws.Header{Alg: jws.AlgES256, Typ: TypKeyBinding}, kbClaims, holder)
	if err != nil {
		return "", err
	}
	return issuerToken + Separator + kbToken, nil
}

// Verify checks a credential against the issuer's public key and returns the
// issuer claims. A nil expectedAud skips the audience check; downstream
// verifiers that never learn the original audience pass nil.
func Verify(credential string, issuerKey jws.PublicKey, expectedAud *string, opts ...Option) (map[string]any, error) {
	cfg := newConfig(opts)

	parts := strings.Split(credential, Separator)
	if len(parts) != 2 {
		return nil, reject(CodeFormatInvalid, "expected issuer token and key-binding token")
	}
	issuerToken, kbToken := parts[0], parts[1]

	claims, err := jws.VerifyCompact(issuerToken, issuerKey)
	if err != nil {
		return nil, reject(CodeSignatureInvalid, "issuer token did not verify")
	}

	if exp, ok := claimInt64(claims, "exp"); ok && cfg.clock().Unix() >= exp {
		return nil, reject(CodeExpired, "credential expired")
	}

	holderKey, ok := ConfirmationKey(claims)
	if !ok {
		return nil, reject(CodeMissingBindingKey, "issuer claims carry no cnf.jwk")
	}

	kbClaims, err := jws.VerifyCompact(kbToken, holderKey)
	if err != nil {
		return nil, reject(CodeSignatureInvalid, "key-binding token did not verify under cnf.jwk")
	}

	if expectedAud != nil {
		aud, _ := kbClaims["aud"].(string)
		if aud != *expectedAud {
			return nil, reject(CodeAudienceMismatch, fmt.Sprintf("expected %q, got %q", *expectedAud, aud))
		}
	}

	if hash, _ := kbClaims["sd_hash"].(string); hash != bindingHash(issuerToken) {
		return nil, reject(CodeBindingHashMismatch, "sd_hash does not match presented issuer token")
	}
	return claims, nil
}

// ConfirmationKey extracts the holder's public key from cnf.jwk claims.
func ConfirmationKey(claims map[string]any) (jws.PublicKey, bool) {
	cnf, ok := claims["cnf"].(map[string]any)
	if !ok {
		return jws.PublicKey{}, false
	}
	jwk, ok := cnf["jwk"].(map[string]any)
	if !ok {
		return jws.PublicKey{}, false
	}
	key := jws.PublicKey{
		Kty: stringClaim(jwk, "kty"),
		Crv: stringClaim(jwk, "crv"),
		X:   stringClaim(jwk, "x"),
		Y:   stringClaim(jwk, "y"),
	}
	if key.X == "" || key.Y == "" {
		return jws.PublicKey{}, false
	}
	return key, true
}

// bindingHash hashes the issuer token exactly as presented on the wire.
func bindingHash(issuerToken string) string {
	sum := sha256.Sum256([]byte(issuerToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func stringClaim(m map[string]any, name string) string {
	s, _ := m[name].(string)
	return s
}

func claimInt64(m map[string]any, name string) (int64, bool) {
	switch v := m[name].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
