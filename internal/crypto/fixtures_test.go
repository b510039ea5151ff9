package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

// Fixtures shared by the package tests. The pinned ciphertexts, tags and
// keys come from the reference test suite for this wire format.
var (
	testPassphrase = []byte("passphrase")
	testSalt       = bytes.Repeat([]byte{'s'}, 16)
	testIV         = bytes.Repeat([]byte{'i'}, 16)
	testKey        = bytes.Repeat([]byte{'k'}, 32)
)

func unb64(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("bad base64 fixture %q: %v", s, err)
	}
	return b
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", s, err)
	}
	return b
}

// readN reads exactly n bytes, failing the test on error or short read.
func readN(t *testing.T, r interface {
	Read([]byte) (int, error)
}, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	total := 0
	for total < n {
		m, err := r.Read(buf[total:])
		total += m
		if err != nil {
			t.Fatalf("read %d of %d bytes: %v", total, n, err)
		}
	}
	return buf
}
