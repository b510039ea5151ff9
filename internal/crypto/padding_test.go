package crypto

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/restbackup/chlorocrypt/internal/stream"
)

func TestPaddingAdder(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []byte
	}{
		{"empty", "", bytes.Repeat([]byte{16}, 16)},
		{"one byte", "a", append([]byte("a"), bytes.Repeat([]byte{15}, 15)...)},
		{"seven bytes", "1234567", append([]byte("1234567"), bytes.Repeat([]byte{9}, 9)...)},
		{"fifteen bytes", "0123456789abcde", append([]byte("0123456789abcde"), 1)},
		{"full block", "0123456789abcdef", append([]byte("0123456789abcdef"), bytes.Repeat([]byte{16}, 16)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaddingAdder(stream.NewBytesReader([]byte(tt.data)))
			if p.Size() != int64(len(tt.want)) {
				t.Errorf("Size() = %d, want %d", p.Size(), len(tt.want))
			}
			if p.Size()%16 != 0 {
				t.Errorf("Size() = %d is not a multiple of 16", p.Size())
			}
			if p.Size() <= int64(len(tt.data)) {
				t.Errorf("padding absent: Size() = %d for %d input bytes", p.Size(), len(tt.data))
			}
			got, err := io.ReadAll(p)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestPaddingAdderSmallReads(t *testing.T) {
	p := NewPaddingAdder(stream.NewBytesReader([]byte("1234567")))
	if got := readN(t, p, 1); got[0] != '1' {
		t.Errorf("first byte = %q", got)
	}
	if got := readN(t, p, 2); string(got) != "23" {
		t.Errorf("bytes 2-3 = %q", got)
	}
	rest, err := io.ReadAll(p)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := append([]byte("4567"), bytes.Repeat([]byte{9}, 9)...)
	if !bytes.Equal(rest, want) {
		t.Errorf("rest = %x, want %x", rest, want)
	}
}

func TestPaddingAdderRewind(t *testing.T) {
	p := NewPaddingAdder(stream.NewBytesReader([]byte("1234567")))
	first, err := io.ReadAll(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second, err := io.ReadAll(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("rewound output differs: %x vs %x", first, second)
	}
}

func TestPaddingAdderClose(t *testing.T) {
	p := NewPaddingAdder(stream.NewBytesReader([]byte("abc")))
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Read after Close = %v, want ErrClosed", err)
	}
}

func TestPaddingStripper(t *testing.T) {
	tests := []struct {
		name   string
		padded []byte
		want   string
	}{
		{"empty", bytes.Repeat([]byte{16}, 16), ""},
		{"one byte", append([]byte("a"), bytes.Repeat([]byte{15}, 15)...), "a"},
		{"seven bytes", append([]byte("1234567"), bytes.Repeat([]byte{9}, 9)...), "1234567"},
		{"fifteen bytes", append([]byte("0123456789abcde"), 1), "0123456789abcde"},
		{"full block", append([]byte("0123456789abcdef"), bytes.Repeat([]byte{16}, 16)...), "0123456789abcdef"},
		// An oversized padding run strips only the declared length.
		{"extra padding byte", append([]byte("1234567"), bytes.Repeat([]byte{9}, 10)...), "1234567\x09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaddingStripper(stream.NewBytesReader(tt.padded))
			if p.Size() != int64(len(tt.padded)) {
				t.Errorf("Size() = %d, want conservative %d", p.Size(), len(tt.padded))
			}
			got, err := io.ReadAll(p)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaddingStripperDamaged(t *testing.T) {
	tests := []struct {
		name   string
		padded []byte
	}{
		{"no data at all", nil},
		{"no padding", []byte("1234567")},
		{"missing padding byte", append([]byte("1234567"), bytes.Repeat([]byte{9}, 8)...)},
		{"zero padding byte", append([]byte("0123456789abcdefx"), 0)},
		{"padding value too large", append([]byte("0123456789abcdefx"), bytes.Repeat([]byte{17}, 17)...)},
		{"mismatched padding run", append([]byte("0123456789abcdefx"), append([]byte{14}, bytes.Repeat([]byte{15}, 14)...)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaddingStripper(stream.NewBytesReader(tt.padded))
			if _, err := io.ReadAll(p); !errors.Is(err, ErrDataDamaged) {
				t.Errorf("ReadAll error = %v, want ErrDataDamaged", err)
			}
		})
	}
}

func TestPaddingRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 1000, 65536} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i * 7)
		}
		p := NewPaddingStripper(NewPaddingAdder(stream.NewBytesReader(data)))
		got, err := io.ReadAll(p)
		if err != nil {
			t.Fatalf("n=%d: ReadAll: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}
