// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

var digests = map[string]func() hash.Hash{
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"blake2b256": mustBlake2b(blake2b.New256),
	"blake2b512": mustBlake2b(blake2b.New512),
	"blake3":     func() hash.Hash { return blake3.New() },
}

func mustBlake2b(fn func(key []byte) (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := fn(nil)
		if err != nil {
			// Unkeyed construction cannot fail.
			panic(err)
		}
		return h
	}
}

// NewDigest returns a hash for the named checksum algorithm. Names are matched
// case-insensitively and ignore '-' and '_' ("SHA-256" == "sha256").
func NewDigest(algorithm string) (hash.Hash, error) {
	fn, ok := digests[normalizeAlgorithm(algorithm)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedAlgorithm, algorithm, strings.Join(Algorithms(), ", "))
	}
	return fn(), nil
}

// Algorithms lists the supported algorithm names in normalized form, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(digests))
	for name := range digests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeAlgorithm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}
