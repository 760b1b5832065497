// Package fingerprint computes content-addressed digests over canonical JSON
// (RFC 8785), so equal values hash identically regardless of map ordering,
// process or host.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Digest returns the hex SHA-256 of the canonical JSON encoding of v.
func Digest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return DigestJSON(raw)
}

// DigestJSON canonicalizes raw JSON before hashing it.
func DigestJSON(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MustDigest is Digest for values that always marshal (strings, slices of
// strings, plain structs). It panics on failure.
func MustDigest(v any) string {
	d, err := Digest(v)
	if err != nil {
		panic(err)
	}
	return d
}

// Short returns the first 12 characters of a digest for log output.
func Short(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
