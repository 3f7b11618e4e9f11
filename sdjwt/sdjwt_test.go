package sdjwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentpay/ap2/jws"
)

func testKeys(t *testing.T) (issuer, holder *jws.Key) {
	t.Helper()

	issuer, err := jws.GenerateKey("platform-1")
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	holder, err = jws.GenerateKey("agent-1")
	if err != nil {
		t.Fatalf("generate holder key: %v", err)
	}
	return issuer, holder
}

func rejectionCode(t *testing.T, err error) ErrorCode {
	t.Helper()

	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	return verr.Code
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	issuer, holder := testKeys(t)
	credential, err := Sign(map[string]any{
		"sub":      "user_1",
		"checkout": map[string]any{"id": "cs_1", "total": int64(4499)},
	}, issuer, holder, "cs_1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if strings.Count(credential, Separator) != 1 {
		t.Fatalf("credential has wrong shape: %q", credential)
	}

	aud := "cs_1"
	claims, err := Verify(credential, issuer.Public(), &aud)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims["sub"] != "user_1" {
		t.Errorf("sub = %v", claims["sub"])
	}
	if _, ok := ConfirmationKey(claims); !ok {
		t.Error("verified claims carry no confirmation key")
	}
}

func TestVerifyNilAudienceSkipsCheck(t *testing.T) {
	t.Parallel()

	issuer, holder := testKeys(t)
	credential, err := Sign(map[string]any{"sub": "user_1"}, issuer, holder, "merchant_1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(credential, issuer.Public(), nil); err != nil {
		t.Errorf("nil audience should skip the check: %v", err)
	}
}

func TestVerifyRejections(t *testing.T) {
	t.Parallel()

	issuer, holder := testKeys(t)
	otherIssuer, err := jws.GenerateKey("platform-2")
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	aud := "cs_1"

	tests := map[string]struct {
		credential func(t *testing.T) string
		issuerKey  jws.PublicKey
		aud        *string
		wantCode   ErrorCode
	}{
		"no separator": {
			credential: func(t *testing.T) string { return "just-one-token" },
			issuerKey:  issuer.Public(),
			aud:        &aud,
			wantCode:   CodeFormatInvalid,
		},
		"three parts": {
			credential: func(t *testing.T) string {
				cred := mustSign(t, issuer, holder, aud)
				return cred + Separator + "extra"
			},
			issuerKey: issuer.Public(),
			aud:       &aud,
			wantCode:  CodeFormatInvalid,
		},
		"wrong issuer key": {
			credential: func(t *testing.T) string { return mustSign(t, issuer, holder, aud) },
			issuerKey:  otherIssuer.Public(),
			aud:        &aud,
			wantCode:   CodeSignatureInvalid,
		},
		"audience mismatch": {
			credential: func(t *testing.T) string { return mustSign(t, issuer, holder, "cs_other") },
			issuerKey:  issuer.Public(),
			aud:        &aud,
			wantCode:   CodeAudienceMismatch,
		},
		"kb token from wrong holder": {
			credential: func(t *testing.T) string {
				intruder, err := jws.GenerateKey("intruder")
				if err != nil {
					t.Fatalf("generate key: %v", err)
				}
				// Issuer binds to holder, but the presenter signs the
				// key-binding token with a different key.
				bound := mustSign(t, issuer, holder, aud)
				forged := mustSign(t, issuer, intruder, aud)
				return strings.Split(bound, Separator)[0] + Separator + strings.Split(forged, Separator)[1]
			},
			issuerKey: issuer.Public(),
			aud:       &aud,
			wantCode:  CodeSignatureInvalid,
		},
		"binding hash mismatch": {
			credential: func(t *testing.T) string {
				first := mustSign(t, issuer, holder, aud)
				second := mustSign(t, issuer, holder, aud)
				// Keys and audience match, but the kb token hashes the
				// other presentation's issuer token.
				return strings.Split(first, Separator)[0] + Separator + strings.Split(second, Separator)[1]
			},
			issuerKey: issuer.Public(),
			aud:       &aud,
			wantCode:  CodeBindingHashMismatch,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Verify(tt.credential(t), tt.issuerKey, tt.aud)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if code := rejectionCode(t, err); code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	issuer, holder := testKeys(t)
	issued := time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC)

	credential, err := Sign(map[string]any{"sub": "u"}, issuer, holder, "cs_1",
		WithTTL(time.Minute),
		WithClock(func() time.Time { return issued }))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	aud := "cs_1"
	if _, err := Verify(credential, issuer.Public(), &aud,
		WithClock(func() time.Time { return issued.Add(30 * time.Second) })); err != nil {
		t.Errorf("credential inside ttl rejected: %v", err)
	}

	_, err = Verify(credential, issuer.Public(), &aud,
		WithClock(func() time.Time { return issued.Add(time.Minute) }))
	if code := rejectionCode(t, err); code != CodeExpired {
		t.Errorf("code = %s, want %s", code, CodeExpired)
	}
}

func TestVerifyMissingBindingKey(t *testing.T) {
	t.Parallel()

	issuer, holder := testKeys(t)
	// Hand-roll a credential whose issuer token omits cnf entirely.
	issuerToken, err := jws.SignCompact(jws.Header{Typ: TypVerifiableCredential}, map[string]any{"sub": "u"}, issuer)
	if err != nil {
		t.Fatalf("sign issuer token: %v", err)
	}
	kbToken, err := jws.SignCompact(jws.Header{Typ: TypKeyBinding}, map[string]any{"aud": "cs_1"}, holder)
	if err != nil {
		t.Fatalf("sign kb token: %v", err)
	}

	aud := "cs_1"
	_, err = Verify(issuerToken+Separator+kbToken, issuer.Public(), &aud)
	if code := rejectionCode(t, err); code != CodeMissingBindingKey {
		t.Errorf("code = %s, want %s", code, CodeMissingBindingKey)
	}
}

func TestSignAddsExtraKBClaims(t *testing.T) {
	t.Parallel()

	issuer, holder := testKeys(t)
	credential, err := Sign(map[string]any{"sub": "u"}, issuer, holder, "merchant_1",
		WithKBClaim("amount", int64(2500)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := Verify(credential, issuer.Public(), nil)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	holderKey, ok := ConfirmationKey(claims)
	if !ok {
		t.Fatal("no confirmation key")
	}
	kbClaims, err := jws.VerifyCompact(strings.Split(credential, Separator)[1], holderKey)
	if err != nil {
		t.Fatalf("verify kb token: %v", err)
	}
	if got, ok := claimInt64(kbClaims, "amount"); !ok || got != 2500 {
		t.Errorf("amount = %v", kbClaims["amount"])
	}
	if kbClaims["nonce"] == "" {
		t.Error("kb token missing nonce")
	}
}

func mustSign(t *testing.T, issuer, holder *jws.Key, audience string) string {
	t.Helper()

	credential, err := Sign(map[string]any{"sub": "user_1"}, issuer, holder, audience)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return credential
}
