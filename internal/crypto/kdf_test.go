package crypto

import (
	"bytes"
	"testing"
)

func TestDeriveKeyKnownAnswers(t *testing.T) {
	tests := []struct {
		name   string
		rounds int
		want   string
	}{
		{
			name:   "1000 rounds",
			rounds: 1000,
			want:   "5d8d01e8cc09ca5c6fa03f0688715b95b019f7dfc5025fe418d8a1e5e85ce8e0",
		},
		{
			name:   "4096 rounds",
			rounds: 4096,
			want:   "1f67a6b1158e60570ed6215edd5f406a29957b95031a547e3941fb7588dc51c2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveKey(testPassphrase, testSalt, tt.rounds)
			if !bytes.Equal(got, unhex(t, tt.want)) {
				t.Errorf("DeriveKey = %x, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveKeyProperties(t *testing.T) {
	k1 := DeriveKey(testPassphrase, testSalt, DefaultRounds)
	if len(k1) != KeySize {
		t.Fatalf("key length = %d, want %d", len(k1), KeySize)
	}

	k2 := DeriveKey(testPassphrase, testSalt, DefaultRounds)
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey is not deterministic")
	}

	other := DeriveKey([]byte("other passphrase"), testSalt, DefaultRounds)
	if bytes.Equal(k1, other) {
		t.Error("different passphrases produced the same key")
	}

	otherSalt := DeriveKey(testPassphrase, bytes.Repeat([]byte{'t'}, 16), DefaultRounds)
	if bytes.Equal(k1, otherSalt) {
		t.Error("different salts produced the same key")
	}
}
