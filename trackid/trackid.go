// Package trackid generates and validates the vault's record identifiers.
//
// A generated id is 12 bytes rendered as 24 lowercase hex characters: a
// 4-byte big-endian unix timestamp, 5 bytes of per-process entropy and a
// 3-byte counter. Records imported from older deployments may spell the same
// 12 bytes in a different hex case, which is why lookups canonicalize.
package trackid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"
)

// EncodedLength is the length of a generated identifier in hex characters.
const EncodedLength = 24

var (
	processEntropy [5]byte
	counter        uint32
)

func init() {
	if _, err := rand.Read(processEntropy[:]); err != nil {
		panic("trackid: cannot seed process entropy: " + err.Error())
	}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("trackid: cannot seed counter: " + err.Error())
	}
	counter = binary.BigEndian.Uint32(seed[:])
}

// New returns a fresh 24-hex-character identifier.
func New() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
	copy(b[4:9], processEntropy[:])
	n := atomic.AddUint32(&counter, 1)
	b[9] = byte(n >> 16)
	b[10] = byte(n >> 8)
	b[11] = byte(n)
	return hex.EncodeToString(b[:])
}

// IsWellFormed reports whether s could be a generated identifier: exactly 24
// hex characters in either case.
func IsWellFormed(s string) bool {
	if len(s) != EncodedLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Canonical returns the canonical (lowercase) spelling of a well-formed
// identifier. The second return is false when s is not well formed.
func Canonical(s string) (string, bool) {
	if !IsWellFormed(s) {
		return "", false
	}
	return strings.ToLower(s), true
}
