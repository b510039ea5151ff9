// Package crypto implements streaming password-based authenticated
// encryption.
//
// Streams are encrypted with AES-256 in CBC mode and authenticated with
// chunked HMAC-SHA-256 tags; keys are derived from the passphrase with
// PBKDF2. Every stage processes data incrementally, so arbitrarily large
// streams are handled in constant memory, and the encrypting pipeline is
// rewindable so an HTTP request body can be resent byte-for-byte after a
// transient failure.
//
// The wire format is
//
//	macSalt(16) || record... where record = chunk(<=64KiB) || tag(32)
//
// and the authenticated payload is
//
//	aesSalt(16) || iv(16) || AES-256-CBC(payload || padding)
//
// with independent keys derived from the two salts. Decryption verifies
// each record's tag before its ciphertext ever reaches the cipher layer,
// which closes the padding-oracle channel.
package crypto

import (
	"github.com/restbackup/chlorocrypt/internal/stream"
)

// EncryptingReader pads, encrypts and authenticates its inner stream. Its
// size accounts for padding, cipher header, MAC salt and tags, so it can be
// sent with an exact Content-Length. Rewinding replays identical bytes:
// salts and IV are fixed at construction and only read cursors and
// accumulators reset.
type EncryptingReader struct {
	stream.RewindableSizedReader
}

// NewEncryptingReader builds the encrypting pipeline over inner. The MAC
// and cipher stages draw independent salts and derive independent keys from
// the same passphrase. Options that pin a salt or key apply to both stages.
func NewEncryptingReader(inner stream.RewindableSizedReader, passphrase []byte, opts ...Option) (*EncryptingReader, error) {
	enc, err := NewAesCbcEncrypter(NewPaddingAdder(inner), passphrase, opts...)
	if err != nil {
		return nil, err
	}
	mac, err := NewMacAdder(enc, passphrase, opts...)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &EncryptingReader{mac}, nil
}

// DecryptingReader verifies, decrypts and unpads a stream produced by
// EncryptingReader. Authentication happens strictly before decryption:
// the MAC stage sits closest to the wire and withholds every chunk until
// its tag checks out. Size is an upper bound; the exact plaintext length
// is known only once the padding has been stripped at end-of-stream.
type DecryptingReader struct {
	stream.SizedReader
}

// NewDecryptingReader builds the decrypting pipeline over inner. It fails
// with ErrDataTruncated if inner is too short to contain the MAC salt or
// cipher header, and with ErrBadMac as soon as any record fails
// verification, including the first record, which is consumed here while
// reading the cipher header.
func NewDecryptingReader(inner stream.SizedReader, passphrase []byte, opts ...Option) (*DecryptingReader, error) {
	mc, err := NewMacChecker(inner, passphrase, opts...)
	if err != nil {
		return nil, err
	}
	dec, err := NewAesCbcDecrypter(mc, passphrase, opts...)
	if err != nil {
		mc.Close()
		return nil, err
	}
	return &DecryptingReader{NewPaddingStripper(dec)}, nil
}
