package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests input and returns lowercase hex. Idempotency keys go
// through this before touching Redis.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
