// Package checksum computes integrity digests for vault payloads.
//
// Digests are CRC-32C (Castagnoli polynomial, hardware accelerated on
// amd64/arm64). They detect accidental corruption: torn writes, truncation,
// bit rot. They are not a defense against deliberate tampering.
package checksum

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// ErrMalformed indicates a digest string that does not parse.
var ErrMalformed = errors.New("checksum: malformed digest")

// prefix tags serialized digests with the algorithm so envelopes stay
// self-describing if the algorithm ever changes.
const prefix = "crc32c:"

var table = crc32.MakeTable(crc32.Castagnoli)

// Sum returns the CRC-32C digest of blob. Sum of an empty blob is 0.
func Sum(blob []byte) uint32 {
	return crc32.Checksum(blob, table)
}

// Format renders sum in the canonical fixed-width form used by backup
// envelopes, e.g. "crc32c:e3069283".
func Format(sum uint32) string {
	return prefix + fmt.Sprintf("%08x", sum)
}

// Parse reverses [Format]. Returns [ErrMalformed] for anything that is not
// a canonical digest string.
func Parse(s string) (uint32, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok || len(rest) != 8 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	sum, err := strconv.ParseUint(rest, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	return uint32(sum), nil
}

// Verify reports whether blob hashes to want.
func Verify(blob []byte, want uint32) bool {
	return Sum(blob) == want
}
