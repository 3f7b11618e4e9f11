package jws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	canonicaljson "github.com/gibson042/canonicaljson-go"
)

// Canonicalize renders v as canonical JSON: object keys sorted
// lexicographically, no insignificant whitespace, UTF-8 preserved. Any two
// logically equal values produce byte-identical output, which makes the
// result safe to use as signing input. Values are normalized through a
// json.Number round trip so numeric literals keep their exact source form.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jws: marshal value: %w", err)
	}
	return CanonicalizeRaw(raw)
}

// CanonicalizeRaw canonicalizes an already-serialized JSON document.
func CanonicalizeRaw(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("jws: decode value: %w", err)
	}
	if dec.More() {
		return nil, errors.New("jws: multiple JSON documents")
	}
	return canonicaljson.Marshal(payload)
}

// DecodeMap parses a JSON document into a map keyed by claim name, keeping
// numbers as json.Number so re-serialization stays byte-exact.
func DecodeMap(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("jws: decode object: %w", err)
	}
	return m, nil
}
