package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// options collects the tunable parameters shared by the stream
// constructors. Salts and IVs are normally drawn from the configured random
// source and keys derived from the passphrase; tests and key-caching callers
// can pin any of them.
type options struct {
	rand   io.Reader
	salt   []byte
	iv     []byte
	key    []byte
	rounds int
}

// Option configures a stream constructor.
type Option func(*options)

// WithRand sets the random source used for fresh salts and IVs. The default
// is crypto/rand.Reader.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rand = r }
}

// WithSalt pins the 16-byte salt instead of generating a random one.
func WithSalt(salt []byte) Option {
	return func(o *options) { o.salt = salt }
}

// WithIV pins the 16-byte CBC initialization vector.
func WithIV(iv []byte) Option {
	return func(o *options) { o.iv = iv }
}

// WithKey pins the 32-byte key, skipping passphrase derivation.
func WithKey(key []byte) Option {
	return func(o *options) { o.key = key }
}

// WithRounds overrides the PBKDF2 iteration count.
func WithRounds(n int) Option {
	return func(o *options) { o.rounds = n }
}

func applyOptions(opts []Option) options {
	o := options{rand: rand.Reader, rounds: DefaultRounds}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// saltValue returns a copy of the pinned salt, or a fresh random one.
func (o *options) saltValue() ([]byte, error) {
	return o.randomOrPinned("salt", o.salt)
}

// ivValue returns a copy of the pinned IV, or a fresh random one.
func (o *options) ivValue() ([]byte, error) {
	return o.randomOrPinned("iv", o.iv)
}

func (o *options) randomOrPinned(name string, pinned []byte) ([]byte, error) {
	if pinned != nil {
		if len(pinned) != SaltSize {
			return nil, fmt.Errorf("%s must be %d bytes, got %d: %w",
				name, SaltSize, len(pinned), ErrInvalidArgument)
		}
		return append([]byte(nil), pinned...), nil
	}
	b := make([]byte, SaltSize)
	if _, err := io.ReadFull(o.rand, b); err != nil {
		return nil, fmt.Errorf("reading random %s: %w", name, err)
	}
	return b, nil
}

// keyValue returns a copy of the pinned key, or derives one from the
// passphrase and salt.
func (o *options) keyValue(passphrase, salt []byte) ([]byte, error) {
	if o.key != nil {
		if len(o.key) != KeySize {
			return nil, fmt.Errorf("key must be %d bytes, got %d: %w",
				KeySize, len(o.key), ErrInvalidArgument)
		}
		return append([]byte(nil), o.key...), nil
	}
	return DeriveKey(passphrase, salt, o.rounds), nil
}
