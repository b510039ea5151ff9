package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of every derived symmetric key and MAC key.
	KeySize = 32

	// SaltSize is the length of the random salts stored on the wire.
	SaltSize = 16

	// DefaultRounds is the PBKDF2 iteration count used for new streams.
	DefaultRounds = 4096
)

// DeriveKey stretches a passphrase and salt into a 32-byte key using
// PBKDF2 with HMAC-SHA-256 (RFC 2898). It is deterministic: the same
// inputs always produce the same key.
func DeriveKey(passphrase, salt []byte, rounds int) []byte {
	return pbkdf2.Key(passphrase, salt, rounds, KeySize, sha256.New)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
