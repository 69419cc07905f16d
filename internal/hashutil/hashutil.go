// Package hashutil provides the two content digests used by the sync engine
// and the base64 helpers for the GitHub contents API.
//
// The content hash is a fast local-change fingerprint; the address hash is
// the git blob object id and therefore comparable against blob SHAs returned
// by the remote tree listing.
package hashutil

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the fast local fingerprint of raw content. It is
// deterministic across runs and processes but is not the remote addressing
// scheme; use BlobSHA for that.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// ContentHashString is ContentHash over a string.
func ContentHashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// NormalizeLineEndings converts CRLF and lone CR line endings to LF, the
// same normalization GitHub applies when writing text content.
func NormalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// BlobSHA computes the git blob object id of content: the SHA-1 of
// "blob <len>\x00" followed by the content bytes. Text content is
// line-ending normalized first so the result matches what the remote store
// reports after a write; binary content is hashed as-is.
func BlobSHA(content []byte, binary bool) string {
	if !binary {
		content = []byte(NormalizeLineEndings(string(content)))
	}
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// BlobSHAString computes the git blob object id of text content.
func BlobSHAString(s string) string {
	return BlobSHA([]byte(s), false)
}

// EncodeBase64 encodes content for blob creation.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes content returned by the contents API, which inserts
// newlines into the base64 payload.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(s)
}
