// Package ids generates the per-agent unique token used to disambiguate
// broadcasts from teammates running the identical binary.
package ids

import (
	"crypto/rand"
	"encoding/hex"
)

const length = 8

// New returns a random 8-character lowercase hex token, the Go equivalent
// of original_source's str(uuid.uuid4())[:8]. A full UUID is overkill for a
// same-tick collision check scoped to one team; 4 random bytes hex-encoded
// give the same 8 printable characters original_source relied on without
// pulling in an RFC 4122 implementation no component here needs.
func New() string {
	var buf [length / 2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read on a real OS does not fail; fall back to a
		// fixed, clearly-non-random token rather than panicking the agent.
		return "00000000"
	}
	return hex.EncodeToString(buf[:])
}
