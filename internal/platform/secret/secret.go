// Package secret generates high-entropy opaque token values.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Source produces a hex-encoded secret with the given bytes of entropy.
// Token-issuing code takes a Source so tests can substitute a deterministic
// generator.
type Source func(entropy int) (string, error)

// New returns a hex-encoded secret read from crypto/rand.
func New(entropy int) (string, error) {
	if entropy <= 0 {
		return "", fmt.Errorf("entropy must be positive, got %d", entropy)
	}
	bytes := make([]byte, entropy)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
