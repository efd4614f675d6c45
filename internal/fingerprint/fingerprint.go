// Package fingerprint derives the idempotency key for an ingested email.
//
// The digest depends only on the unwrapped content, never on the mail
// system's own message identifier, so a re-synced copy of the same forward
// always maps to the same key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// BodyPrefixLength bounds how much of the body participates in the digest.
// Trailing differences past this point (signatures, tracking pixels picked
// up on re-forward) do not change the fingerprint.
const BodyPrefixLength = 500

// New computes the content fingerprint of an unwrapped email.
func New(originalFrom, originalSubject string, originalSentAt *time.Time, body string) string {
	sentAt := ""
	if originalSentAt != nil {
		sentAt = originalSentAt.UTC().Format(time.RFC3339)
	}

	prefix := canonical(body)
	if len(prefix) > BodyPrefixLength {
		prefix = prefix[:BodyPrefixLength]
	}

	input := strings.Join([]string{
		strings.ToLower(canonical(originalFrom)),
		canonical(originalSubject),
		sentAt,
		prefix,
	}, "|")

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// canonical trims whitespace and applies NFKC so visually identical text
// hashes identically regardless of Unicode encoding choices upstream.
func canonical(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}
