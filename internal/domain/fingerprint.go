package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// identitySeparator keeps field boundaries fixed inside the hashed payload,
// so ("ab", "c") and ("a", "bc") never collide.
const identitySeparator = "\x1f"

// NormalizeIdentity returns the canonical form of one identity field:
// NFC-composed, trimmed, and case-folded.
func NormalizeIdentity(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return s
	}
	return cases.Fold().String(s)
}

// ComputeFingerprint returns the hex SHA-256 of the normalized
// (email, name, firstName) tuple. Records with equal normalized identity
// fields always share a fingerprint; no other field participates.
func ComputeFingerprint(email, name, firstName string) string {
	payload := NormalizeIdentity(email) + identitySeparator +
		NormalizeIdentity(name) + identitySeparator +
		NormalizeIdentity(firstName)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
