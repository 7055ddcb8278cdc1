package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashContent returns the hex-encoded SHA-256 of content, or "" when content
// is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString hashes a string.
func HashString(content string) string {
	return HashContent([]byte(content))
}

// HashJSON hashes the JSON encoding of v. Struct fields encode in
// declaration order and map keys sorted, so equal values hash equally.
func HashJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return HashContent(data)
}
