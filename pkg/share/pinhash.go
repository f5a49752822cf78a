package share

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for PIN hashing. PINs are short, so a deliberately
// expensive KDF matters more here than for long passwords.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	pinSaltLen = 16
)

// randBytes returns n cryptographically secure random bytes.
func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// hashPIN returns the argon2id digest of pin using the provided salt.
func hashPIN(pin string, salt []byte) []byte {
	return argon2.IDKey([]byte(pin), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// verifyPIN verifies pin against the expected digest in constant time.
func verifyPIN(pin string, salt, expected []byte) bool {
	got := hashPIN(pin, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
