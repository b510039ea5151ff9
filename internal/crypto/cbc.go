package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"os"

	"github.com/restbackup/chlorocrypt/internal/stream"
)

// cbcHeaderSize is the salt plus IV prefix on every encrypted stream.
const cbcHeaderSize = SaltSize + aes.BlockSize

// AesCbcEncrypter encrypts its inner stream with AES-256 in CBC mode. The
// output is salt(16) || iv(16) || ciphertext; the key is derived from the
// passphrase and salt unless pinned. The inner stream's length must be a
// multiple of 16; wrap it in a PaddingAdder first.
type AesCbcEncrypter struct {
	br         *stream.Buffered
	inner      stream.RewindableSizedReader
	block      cipher.Block
	enc        cipher.BlockMode
	salt       []byte
	iv         []byte
	key        []byte
	buf        []byte
	size       int64
	headerSent bool
	done       bool
	closed     bool
}

// NewAesCbcEncrypter wraps inner for encryption under passphrase. Salt and
// IV are drawn from the configured random source once, at construction;
// Rewind reuses them so repeated reads produce identical ciphertext.
func NewAesCbcEncrypter(inner stream.RewindableSizedReader, passphrase []byte, opts ...Option) (*AesCbcEncrypter, error) {
	if inner.Size()%aes.BlockSize != 0 {
		return nil, fmt.Errorf("stream length %d is not a multiple of %d: %w",
			inner.Size(), aes.BlockSize, ErrInvalidArgument)
	}
	o := applyOptions(opts)
	salt, err := o.saltValue()
	if err != nil {
		return nil, err
	}
	iv, err := o.ivValue()
	if err != nil {
		return nil, err
	}
	key, err := o.keyValue(passphrase, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	e := &AesCbcEncrypter{
		inner: inner,
		block: block,
		enc:   cipher.NewCBCEncrypter(block, iv),
		salt:  salt,
		iv:    iv,
		key:   key,
		buf:   make([]byte, readChunkSize),
		size:  cbcHeaderSize + inner.Size(),
	}
	e.br = stream.NewBuffered(e)
	return e, nil
}

// NextChunk implements stream.Transform.
func (e *AesCbcEncrypter) NextChunk() ([]byte, error) {
	if !e.headerSent {
		e.headerSent = true
		return append(append([]byte(nil), e.salt...), e.iv...), nil
	}
	if e.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(e.inner, e.buf)
	switch err {
	case nil:
	case io.EOF:
		e.done = true
		return nil, io.EOF
	case io.ErrUnexpectedEOF:
		e.done = true
		if n%aes.BlockSize != 0 {
			return nil, fmt.Errorf("stream ended in the middle of a block: %w", ErrDataDamaged)
		}
	default:
		return nil, err
	}
	e.enc.CryptBlocks(e.buf[:n], e.buf[:n])
	return e.buf[:n], nil
}

func (e *AesCbcEncrypter) Read(b []byte) (int, error) {
	if e.closed {
		return 0, os.ErrClosed
	}
	return e.br.Read(b)
}

// Size returns the header length plus the inner stream's length.
func (e *AesCbcEncrypter) Size() int64 { return e.size }

// Rewind re-keys the CBC state from the stored salt, IV and key and resets
// the inner stream. No new randomness is drawn.
func (e *AesCbcEncrypter) Rewind() error {
	if e.closed {
		return os.ErrClosed
	}
	if err := e.inner.Rewind(); err != nil {
		return err
	}
	e.enc = cipher.NewCBCEncrypter(e.block, e.iv)
	e.headerSent = false
	e.done = false
	e.br.Reset()
	return nil
}

// Close zeroes the key material and closes the inner stream. Idempotent.
func (e *AesCbcEncrypter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	zeroBytes(e.key)
	e.enc = nil
	return e.inner.Close()
}

// AesCbcDecrypter reverses AesCbcEncrypter. The 32-byte salt/IV header is
// read and stripped at construction time and the key derived from it; the
// body is decrypted in block-aligned reads.
type AesCbcDecrypter struct {
	br     *stream.Buffered
	inner  stream.SizedReader
	dec    cipher.BlockMode
	key    []byte
	buf    []byte
	size   int64
	done   bool
	closed bool
}

// NewAesCbcDecrypter wraps inner, which must begin with the salt and IV
// written by AesCbcEncrypter.
func NewAesCbcDecrypter(inner stream.SizedReader, passphrase []byte, opts ...Option) (*AesCbcDecrypter, error) {
	if inner.Size() < cbcHeaderSize {
		return nil, fmt.Errorf("stream is too short to contain a %d-byte salt and iv header: %w",
			cbcHeaderSize, ErrDataTruncated)
	}
	header := make([]byte, cbcHeaderSize)
	if _, err := io.ReadFull(inner, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("stream is missing its %d-byte salt and iv header: %w",
				cbcHeaderSize, ErrDataTruncated)
		}
		return nil, err
	}
	salt, iv := header[:SaltSize], header[SaltSize:]
	o := applyOptions(opts)
	key, err := o.keyValue(passphrase, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	d := &AesCbcDecrypter{
		inner: inner,
		dec:   cipher.NewCBCDecrypter(block, iv),
		key:   key,
		buf:   make([]byte, readChunkSize),
		size:  inner.Size() - cbcHeaderSize,
	}
	d.br = stream.NewBuffered(d)
	return d, nil
}

// NextChunk implements stream.Transform.
func (d *AesCbcDecrypter) NextChunk() ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(d.inner, d.buf)
	switch err {
	case nil:
	case io.EOF:
		d.done = true
		return nil, io.EOF
	case io.ErrUnexpectedEOF:
		d.done = true
		if n%aes.BlockSize != 0 {
			return nil, fmt.Errorf("stream ended in the middle of a block: %w", ErrDataDamaged)
		}
	default:
		return nil, err
	}
	d.dec.CryptBlocks(d.buf[:n], d.buf[:n])
	return d.buf[:n], nil
}

func (d *AesCbcDecrypter) Read(b []byte) (int, error) {
	if d.closed {
		return 0, os.ErrClosed
	}
	return d.br.Read(b)
}

// Size returns the inner stream's length minus the salt/IV header.
func (d *AesCbcDecrypter) Size() int64 { return d.size }

// Close zeroes the key material and closes the inner stream. Idempotent.
func (d *AesCbcDecrypter) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	zeroBytes(d.key)
	d.dec = nil
	return d.inner.Close()
}
