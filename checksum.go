// Checksum algorithms for temporary run verification.
//
// Each run's digest covers its uncompressed record bytes and is recorded in
// the manifest when the run is written. The merge recomputes the digest as
// it drains the run and compares at exhaustion. Three algorithms are
// supported, selectable via Config.ChecksumAlgorithm.
package fwsort

import (
	"encoding/hex"
	"hash"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Checksum algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Cryptographic
)

// newDigest returns a streaming 64-bit digest for the given algorithm, or
// nil if the algorithm is unknown.
func newDigest(alg int) hash.Hash {
	switch alg {
	case AlgXXHash3:
		return xxh3.New()
	case AlgFNV1a:
		return fnv.New64a()
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		return h
	default:
		return nil
	}
}

// digestString finalizes a digest as 16 hex characters.
func digestString(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
