package store

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Fingerprint computes the content fingerprint stored on a file record:
// the hex xxh3-128 of content.
func Fingerprint(content []byte) string {
	h := xxh3.New()
	h.Write(content)
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// FingerprintStrings hashes parts with a separator so that ("ab", "c")
// and ("a", "bc") differ.
func FingerprintStrings(parts ...string) string {
	h := xxh3.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}
