package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize trims and collapses whitespace so that cosmetically distinct
// inputs fingerprint identically. Returns "" for whitespace-only content.
func Normalize(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// Fingerprint returns the stable cache key for normalized content
// (hex-encoded sha256).
func Fingerprint(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}
