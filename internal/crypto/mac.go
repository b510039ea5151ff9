package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/restbackup/chlorocrypt/internal/stream"
)

const (
	// MacBlockSize is the maximum number of data bytes covered between two
	// consecutive MAC tags. Bounding the span lets the checker verify and
	// release data incrementally instead of buffering the whole stream.
	MacBlockSize = 64 * 1024

	// macTagSize is the length of each HMAC-SHA-256 tag.
	macTagSize = sha256.Size
)

// MacAdder interleaves its inner stream with HMAC-SHA-256 tags. The output
// is salt(16) followed by records of chunk || tag(32), one record per
// MacBlockSize data bytes. The accumulator runs over all data bytes seen so
// far, so each tag authenticates the entire prefix. The final record's
// chunk is always shorter than MacBlockSize and may be empty: an empty
// inner stream still produces one record, and a block-aligned one gets a
// trailing empty record. The checker relies on that shape to detect
// truncation.
type MacAdder struct {
	br       *stream.Buffered
	inner    stream.RewindableSizedReader
	mac      hash.Hash
	salt     []byte
	key      []byte
	buf      []byte
	size     int64
	saltSent bool
	done     bool
	closed   bool
}

// NewMacAdder wraps inner for authentication under passphrase. The salt is
// drawn once at construction; Rewind reuses it and restarts the accumulator.
func NewMacAdder(inner stream.RewindableSizedReader, passphrase []byte, opts ...Option) (*MacAdder, error) {
	o := applyOptions(opts)
	salt, err := o.saltValue()
	if err != nil {
		return nil, err
	}
	key, err := o.keyValue(passphrase, salt)
	if err != nil {
		return nil, err
	}
	n := inner.Size()
	m := &MacAdder{
		inner: inner,
		mac:   hmac.New(sha256.New, key),
		salt:  salt,
		key:   key,
		buf:   make([]byte, MacBlockSize, MacBlockSize+macTagSize),
		size:  SaltSize + n + macTagSize*(n/MacBlockSize+1),
	}
	m.br = stream.NewBuffered(m)
	return m, nil
}

// NextChunk implements stream.Transform.
func (m *MacAdder) NextChunk() ([]byte, error) {
	if !m.saltSent {
		m.saltSent = true
		return m.salt, nil
	}
	if m.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(m.inner, m.buf[:MacBlockSize])
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		m.done = true
	default:
		return nil, err
	}
	m.mac.Write(m.buf[:n])
	// Sum snapshots the running digest without finalizing it, so the
	// accumulator keeps going for the next record.
	return m.mac.Sum(m.buf[:n]), nil
}

func (m *MacAdder) Read(b []byte) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	return m.br.Read(b)
}

// Size returns the salted, tagged length of the stream.
func (m *MacAdder) Size() int64 { return m.size }

// Rewind restarts the MAC accumulator with the same salt and key and
// resets the inner stream.
func (m *MacAdder) Rewind() error {
	if m.closed {
		return os.ErrClosed
	}
	if err := m.inner.Rewind(); err != nil {
		return err
	}
	m.mac = hmac.New(sha256.New, m.key)
	m.saltSent = false
	m.done = false
	m.br.Reset()
	return nil
}

// Close zeroes the key material and closes the inner stream. Idempotent.
func (m *MacAdder) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	zeroBytes(m.key)
	m.mac = nil
	return m.inner.Close()
}

// MacChecker verifies and strips the salt and tags written by MacAdder.
// Each record's tag is recomputed and compared in constant time before any
// of the record's bytes are released, so an attacker never sees the effect
// of processing unauthenticated data downstream.
type MacChecker struct {
	br     *stream.Buffered
	inner  stream.SizedReader
	mac    hash.Hash
	key    []byte
	buf    []byte
	size   int64
	done   bool
	closed bool
}

// NewMacChecker wraps inner, which must begin with the salt written by
// MacAdder.
func NewMacChecker(inner stream.SizedReader, passphrase []byte, opts ...Option) (*MacChecker, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(inner, salt); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("stream does not contain a full MAC salt: %w", ErrDataTruncated)
		}
		return nil, err
	}
	o := applyOptions(opts)
	key, err := o.keyValue(passphrase, salt)
	if err != nil {
		return nil, err
	}
	c := &MacChecker{
		inner: inner,
		mac:   hmac.New(sha256.New, key),
		key:   key,
		buf:   make([]byte, MacBlockSize+macTagSize),
		size:  checkedSize(inner.Size()),
	}
	c.br = stream.NewBuffered(c)
	return c, nil
}

// checkedSize inverts the MacAdder size formula: full records carry
// MacBlockSize data bytes each, the final short record carries the rest.
func checkedSize(outer int64) int64 {
	records := outer - SaltSize
	if records < macTagSize {
		return 0
	}
	const recordSize = MacBlockSize + macTagSize
	full := records / recordSize
	rem := records % recordSize
	if rem < macTagSize {
		rem = macTagSize
	}
	return full*MacBlockSize + rem - macTagSize
}

// NextChunk implements stream.Transform.
func (c *MacChecker) NextChunk() ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(c.inner, c.buf)
	switch err {
	case nil:
	case io.EOF:
		// The final record is always shorter than a full one, so a clean
		// EOF here means it was cut off entirely.
		return nil, fmt.Errorf("stream ended without its final MAC record: %w", ErrDataTruncated)
	case io.ErrUnexpectedEOF:
		c.done = true
		if n < macTagSize {
			return nil, fmt.Errorf("stream does not contain a MAC: %w", ErrDataTruncated)
		}
	default:
		return nil, err
	}
	chunk, tag := c.buf[:n-macTagSize], c.buf[n-macTagSize:n]
	c.mac.Write(chunk)
	if !hmac.Equal(tag, c.mac.Sum(nil)) {
		return nil, fmt.Errorf("the stream has been damaged or the passphrase is incorrect: %w", ErrBadMac)
	}
	return chunk, nil
}

func (c *MacChecker) Read(b []byte) (int, error) {
	if c.closed {
		return 0, os.ErrClosed
	}
	return c.br.Read(b)
}

// Size returns the number of data bytes the stream will yield once every
// tag has been verified and stripped.
func (c *MacChecker) Size() int64 { return c.size }

// Close zeroes the key material and closes the inner stream. Idempotent.
func (c *MacChecker) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	zeroBytes(c.key)
	c.mac = nil
	return c.inner.Close()
}
