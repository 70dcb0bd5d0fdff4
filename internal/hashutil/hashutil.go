// Package hashutil computes the git-blob-SHA1 content hash used as the
// optimistic-concurrency token across the write/sync core (spec §4.4, P5).
// The hash matches `git hash-object -` bit for bit on the same normalized
// bytes, so a caller can always cross-check it against the real git
// plumbing when debugging.
package hashutil

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Normalize strips a UTF-8 BOM and normalizes CRLF to LF: the byte transform
// Hash applies before hashing (spec §3, ContentHash). Wrap and unwrap do not
// apply it.
func Normalize(content []byte) []byte {
	content = stripBOM(content)
	if !bytes.Contains(content, []byte("\r\n")) {
		return content
	}
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}

func stripBOM(b []byte) []byte {
	const bom = "\xef\xbb\xbf"
	if bytes.HasPrefix(b, []byte(bom)) {
		return b[len(bom):]
	}
	return b
}

// Hash computes the 40-hex-lowercase git blob SHA-1 over the normalized
// bytes: sha1("blob " + len + "\0" + content).
func Hash(content []byte) string {
	normalized := Normalize(content)
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(normalized))
	h.Write(normalized)
	return hex.EncodeToString(h.Sum(nil))
}

// HashString is a convenience wrapper for text content.
func HashString(content string) string {
	return Hash([]byte(content))
}

// Equal reports whether two hex hash strings are equal, case-insensitively,
// since callers occasionally pass git's own uppercase short-hash output.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Valid reports whether s looks like a 40-hex-character hash.
func Valid(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
