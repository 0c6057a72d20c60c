// File: internal/cachestore/hash.go
// Brief: Content digests for cache invalidation.

package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
)

// DigestFiles computes a stable sha256 over the paths and their contents.
// Missing files contribute a fixed marker so a deletion still changes the
// digest.
func DigestFiles(paths ...string) (string, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, path := range sorted {
		h.Write([]byte(path))
		h.Write([]byte{0})
		raw, err := os.ReadFile(path)
		if err != nil {
			h.Write([]byte("absent"))
		} else {
			h.Write(raw)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestOneFile(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "absent"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
