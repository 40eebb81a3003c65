package security

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// CodeHash fingerprints source code for duplicate detection. Leading and trailing
// whitespace does not change the hash.
func CodeHash(sourceCode string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(sourceCode)))
	return hex.EncodeToString(sum[:])
}
