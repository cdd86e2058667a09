package utils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// ContentHash hashes content with the configured algorithm (sha256, sha1 or
// md5) and returns the hex digest. Unknown algorithms fall back to sha256.
func ContentHash(algorithm string, content []byte) string {
	var h hash.Hash
	switch algorithm {
	case "sha1":
		h = sha1.New()
	case "md5":
		h = md5.New()
	default:
		h = sha256.New()
	}
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// CacheFingerprint derives the cache key for a (content_hash, schema_key,
// model_id) tuple. The key itself is always sha256 so that rows stay
// addressable when the content hash algorithm changes.
func CacheFingerprint(contentHash, schemaKey, modelID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", contentHash, schemaKey, modelID)))
	return hex.EncodeToString(sum[:])
}
