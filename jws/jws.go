// Package jws implements the signing primitives AP2 mandates are built on:
// canonical JSON serialization, P-256 key management with JWK export, and
// ES256 compact and detached-content tokens with raw r||s signatures.
package jws

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedToken reports a token that does not parse as three
// dot-separated base64url segments.
var ErrMalformedToken = errors.New("jws: malformed token")

// ErrSignature reports a signature that does not verify under the supplied key.
var ErrSignature = errors.New("jws: signature verification failed")

// Header is the protected header of a compact or detached token.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	KID string `json:"kid,omitempty"`
}

// signRaw signs data with ECDSA P-256 over SHA-256, returning the fixed
// 64-byte r||s form rather than ASN.1.
func signRaw(data []byte, key *Key) ([]byte, error) {
	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, key.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("jws: sign: %w", err)
	}
	sig := make([]byte, 2*coordinateLen)
	r.FillBytes(sig[:coordinateLen])
	s.FillBytes(sig[coordinateLen:])
	return sig, nil
}

// verifyRaw checks a raw r||s signature. Malformed input returns false, never
// an error or panic.
func verifyRaw(sig, data []byte, pub *ecdsa.PublicKey) bool {
	if len(sig) != 2*coordinateLen || pub == nil {
		return false
	}
	digest := sha256.Sum256(data)
	r := new(big.Int).SetBytes(sig[:coordinateLen])
	s := new(big.Int).SetBytes(sig[coordinateLen:])
	return ecdsa.Verify(pub, digest[:], r, s)
}

// SignCompact builds a self-contained token: b64url(header).b64url(payload).b64url(sig).
// The payload is canonicalized before signing so signer and verifier agree on
// the exact bytes.
func SignCompact(header Header, claims map[string]any, key *Key) (string, error) {
	if header.Alg == "" {
		header.Alg = AlgES256
	}
	headerJSON, err := Canonicalize(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := Canonicalize(claims)
	if err != nil {
		return "", err
	}
	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signingInput := encodedHeader + "." + encodedPayload
	sig, err := signRaw([]byte(signingInput), key)
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyCompact checks a compact token's signature under pub and returns the
// decoded payload claims. Numbers come back as json.Number.
func VerifyCompact(token string, pub PublicKey) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}
	ecPub, err := pub.ECDSA()
	if err != nil {
		return nil, err
	}
	signingInput := parts[0] + "." + parts[1]
	if !verifyRaw(sig, []byte(signingInput), ecPub) {
		return nil, ErrSignature
	}
	return DecodeMap(payloadJSON)
}

// SignDetached signs payload and serializes the detached-content form
// b64url(header)..b64url(sig). The payload itself is never embedded; callers
// must supply it again when verifying.
func SignDetached(payload []byte, key *Key) (string, error) {
	header := Header{Alg: AlgES256, KID: key.kid}
	headerJSON, err := Canonicalize(header)
	if err != nil {
		return "", err
	}
	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	sig, err := signRaw([]byte(encodedHeader+"."+encodedPayload), key)
	if err != nil {
		return "", err
	}
	return encodedHeader + ".." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyDetached recomputes the signing input from the caller-supplied payload
// and checks the detached signature. A token whose middle segment is non-empty
// is rejected outright.
func VerifyDetached(token string, payload []byte, pub PublicKey) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] != "" {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	ecPub, err := pub.ECDSA()
	if err != nil {
		return false
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	return verifyRaw(sig, []byte(parts[0]+"."+encodedPayload), ecPub)
}
