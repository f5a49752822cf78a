package share

import (
	"encoding/base64"
	"fmt"
)

// tokenBytes is the raw entropy per token: 24 bytes = 192 bits, encoding to
// 32 URL-safe characters. Comfortably above the 128-bit unguessability
// floor required of share links.
const tokenBytes = 24

// generateToken mints a new high-entropy URL-safe token.
func generateToken() (string, error) {
	raw, err := randBytes(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
