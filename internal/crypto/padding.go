package crypto

import (
	"bytes"
	"crypto/aes"
	"fmt"
	"io"
	"os"

	"github.com/restbackup/chlorocrypt/internal/stream"
)

// readChunkSize is the amount each transform stage pulls from its inner
// stream per refill.
const readChunkSize = 32 * 1024

// PaddingAdder pads its inner stream to a multiple of the AES block size.
// Between 1 and 16 padding bytes are appended, each holding the padding
// length, so the padding is always present and self-describing even when
// the input is already block-aligned.
type PaddingAdder struct {
	br      *stream.Buffered
	inner   stream.RewindableSizedReader
	buf     []byte
	size    int64
	pad     byte
	padSent bool
	closed  bool
}

// NewPaddingAdder wraps inner with padding. The padded length is
// inner.Size() rounded up to the next multiple of 16.
func NewPaddingAdder(inner stream.RewindableSizedReader) *PaddingAdder {
	pad := byte(aes.BlockSize - inner.Size()%aes.BlockSize)
	p := &PaddingAdder{
		inner: inner,
		buf:   make([]byte, readChunkSize),
		size:  inner.Size() + int64(pad),
		pad:   pad,
	}
	p.br = stream.NewBuffered(p)
	return p
}

// NextChunk implements stream.Transform.
func (p *PaddingAdder) NextChunk() ([]byte, error) {
	if p.padSent {
		return nil, io.EOF
	}
	for {
		n, err := p.inner.Read(p.buf)
		if n > 0 {
			return p.buf[:n], nil
		}
		if err == io.EOF {
			p.padSent = true
			return bytes.Repeat([]byte{p.pad}, int(p.pad)), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *PaddingAdder) Read(b []byte) (int, error) {
	if p.closed {
		return 0, os.ErrClosed
	}
	return p.br.Read(b)
}

// Size returns the padded length.
func (p *PaddingAdder) Size() int64 { return p.size }

// Rewind resets the stage and its inner stream. The padding re-emitted
// after a rewind is identical; nothing here depends on randomness.
func (p *PaddingAdder) Rewind() error {
	if p.closed {
		return os.ErrClosed
	}
	if err := p.inner.Rewind(); err != nil {
		return err
	}
	p.padSent = false
	p.br.Reset()
	return nil
}

// Close closes the inner stream. It is idempotent.
func (p *PaddingAdder) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.inner.Close()
}

// PaddingStripper removes the padding appended by PaddingAdder. It holds
// back the final 16 bytes of the inner stream and validates them at
// end-of-data; a missing or malformed padding run means the passphrase was
// wrong or the data was corrupted.
//
// Size is reported as the inner stream's size. The true post-strip length
// is only known once the stream has been fully read, so callers must treat
// Size as an upper bound for this stage.
type PaddingStripper struct {
	br     *stream.Buffered
	inner  stream.SizedReader
	buf    []byte
	hold   []byte
	done   bool
	closed bool
}

// NewPaddingStripper wraps inner, which must end with valid padding.
func NewPaddingStripper(inner stream.SizedReader) *PaddingStripper {
	p := &PaddingStripper{
		inner: inner,
		buf:   make([]byte, readChunkSize),
	}
	p.br = stream.NewBuffered(p)
	return p
}

// NextChunk implements stream.Transform.
func (p *PaddingStripper) NextChunk() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	for {
		n, err := p.inner.Read(p.buf)
		if n > 0 {
			p.hold = append(p.hold, p.buf[:n]...)
			if len(p.hold) > aes.BlockSize {
				emit := p.hold[:len(p.hold)-aes.BlockSize]
				p.hold = append([]byte(nil), p.hold[len(emit):]...)
				return emit, nil
			}
			continue
		}
		if err == io.EOF {
			p.done = true
			return p.stripPadding()
		}
		if err != nil {
			return nil, err
		}
	}
}

// stripPadding validates and removes the trailing padding run from the
// held-back bytes.
func (p *PaddingStripper) stripPadding() ([]byte, error) {
	if len(p.hold) == 0 {
		return nil, fmt.Errorf("no padding found at end of stream: %w", ErrDataDamaged)
	}
	v := p.hold[len(p.hold)-1]
	if v < 1 || v > aes.BlockSize || int(v) > len(p.hold) {
		return nil, fmt.Errorf("no padding found at end of stream: %w", ErrDataDamaged)
	}
	for _, b := range p.hold[len(p.hold)-int(v):] {
		if b != v {
			return nil, fmt.Errorf("no padding found at end of stream: %w", ErrDataDamaged)
		}
	}
	return p.hold[:len(p.hold)-int(v)], nil
}

func (p *PaddingStripper) Read(b []byte) (int, error) {
	if p.closed {
		return 0, os.ErrClosed
	}
	return p.br.Read(b)
}

// Size returns the inner stream's size, an upper bound on the stripped
// length.
func (p *PaddingStripper) Size() int64 { return p.inner.Size() }

// Close closes the inner stream. It is idempotent.
func (p *PaddingStripper) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.hold = nil
	return p.inner.Close()
}
