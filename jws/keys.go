package jws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

const (
	// AlgES256 is the only signing algorithm this package produces.
	AlgES256 = "ES256"

	curveName     = "P-256"
	keyType       = "EC"
	coordinateLen = 32
)

// Key is a P-256 signing identity owned by a single party. The private half
// never leaves the process that generated it.
type Key struct {
	kid  string
	priv *ecdsa.PrivateKey
}

// GenerateKey creates a fresh P-256 key pair under the given key identifier.
func GenerateKey(kid string) (*Key, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jws: generate key: %w", err)
	}
	return &Key{kid: kid, priv: priv}, nil
}

// KID returns the stable key identifier.
func (k *Key) KID() string { return k.kid }

// Public exports the public half as a JWK record.
func (k *Key) Public() PublicKey {
	x := make([]byte, coordinateLen)
	y := make([]byte, coordinateLen)
	k.priv.PublicKey.X.FillBytes(x)
	k.priv.PublicKey.Y.FillBytes(y)
	return PublicKey{
		KID: k.kid,
		Kty: keyType,
		Crv: curveName,
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
		Alg: AlgES256,
		Use: "sig",
	}
}

// PublicKey is the JWK form of a signing identity's public half. It is
// immutable and safe to share freely.
type PublicKey struct {
	KID string `json:"kid,omitempty"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
}

// Confirmation strips the record down to the canonical subset embedded in
// cnf.jwk claims: curve, key type, and coordinates.
func (p PublicKey) Confirmation() PublicKey {
	return PublicKey{Kty: p.Kty, Crv: p.Crv, X: p.X, Y: p.Y}
}

// ECDSA reconstructs the elliptic-curve public key from the JWK coordinates.
func (p PublicKey) ECDSA() (*ecdsa.PublicKey, error) {
	if p.Kty != keyType || p.Crv != curveName {
		return nil, fmt.Errorf("jws: unsupported key %s/%s", p.Kty, p.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(p.X)
	if err != nil {
		return nil, fmt.Errorf("jws: decode x coordinate: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(p.Y)
	if err != nil {
		return nil, fmt.Errorf("jws: decode y coordinate: %w", err)
	}
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("jws: point is not on curve")
	}
	return pub, nil
}

// Thumbprint computes the RFC 7638 thumbprint over the canonical
// {crv, kty, x, y} subset. Records with identical subsets always yield the
// same thumbprint regardless of kid, alg, or use.
func (p PublicKey) Thumbprint() (string, error) {
	canonical, err := Canonicalize(map[string]string{
		"crv": p.Crv,
		"kty": p.Kty,
		"x":   p.X,
		"y":   p.Y,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
