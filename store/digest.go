package store

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/fnv"
	"io"
)

// HashKey content-addresses a logical cache key (plus optional metadata
// strings) with the configured digest algorithm, returning a hex string.
// Supported algorithms: sha256 (default), sha1, fnv64.
func HashKey(algo, logical string, meta ...string) (string, error) {
	var h hash.Hash
	switch algo {
	case "", "sha256":
		h = sha256.New()
	case "sha1":
		h = sha1.New()
	case "fnv64":
		h = fnv.New64a()
	default:
		return "", fmt.Errorf("unknown digest algorithm %q", algo)
	}

	io.WriteString(h, logical)
	for _, m := range meta {
		io.WriteString(h, "\x00")
		io.WriteString(h, m)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
