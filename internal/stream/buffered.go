package stream

// Transform produces successive chunks of transformed bytes. A call returns
// either a non-empty chunk, an error, or both; once it has returned io.EOF
// it must keep returning io.EOF. The returned slice remains valid until the
// next call, so implementations may reuse an internal buffer.
type Transform interface {
	NextChunk() ([]byte, error)
}

// Buffered adapts a Transform to the io.Reader contract. It hands out
// buffered chunk bytes until they are exhausted, then pulls the next chunk.
// An error from the transform is withheld until every byte produced before
// it has been consumed.
//
// Every pipeline stage reuses this adapter instead of re-implementing the
// trim-and-refill bookkeeping.
type Buffered struct {
	t   Transform
	buf []byte
	off int
	err error
}

// NewBuffered returns a Buffered reading from t.
func NewBuffered(t Transform) *Buffered {
	return &Buffered{t: t}
}

func (b *Buffered) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for b.off >= len(b.buf) {
		if b.err != nil {
			return 0, b.err
		}
		b.buf, b.err = b.t.NextChunk()
		b.off = 0
	}
	n := copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

// Reset discards buffered bytes and any held error. Used by rewindable
// stages after the underlying transform has been reset.
func (b *Buffered) Reset() {
	b.buf = nil
	b.off = 0
	b.err = nil
}
