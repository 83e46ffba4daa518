package secrets

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func newTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, errNew := NewSealer(newTestKey(t))
	if errNew != nil {
		t.Fatalf("NewSealer: %v", errNew)
	}

	plain := []byte("otpauth://totp/keywarden:a@b.com?secret=ABC")
	sealed, errSeal := sealer.Seal(plain)
	if errSeal != nil {
		t.Fatalf("Seal: %v", errSeal)
	}
	if bytes.Equal(sealed, plain) {
		t.Fatalf("expected sealed output to differ from plaintext")
	}

	opened, errOpen := sealer.Open(sealed)
	if errOpen != nil {
		t.Fatalf("Open: %v", errOpen)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("expected %q, got %q", plain, opened)
	}
}

func TestSealNondeterministic(t *testing.T) {
	sealer, errNew := NewSealer(newTestKey(t))
	if errNew != nil {
		t.Fatalf("NewSealer: %v", errNew)
	}
	first, _ := sealer.Seal([]byte("x"))
	second, _ := sealer.Seal([]byte("x"))
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct nonces to yield distinct ciphertexts")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	sealer, errNew := NewSealer(newTestKey(t))
	if errNew != nil {
		t.Fatalf("NewSealer: %v", errNew)
	}
	sealed, errSeal := sealer.Seal([]byte("secret"))
	if errSeal != nil {
		t.Fatalf("Seal: %v", errSeal)
	}

	raw, errDecode := base64.StdEncoding.DecodeString(string(sealed))
	if errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	raw[len(raw)-1] ^= 0xff
	tampered := []byte(base64.StdEncoding.EncodeToString(raw))

	if _, errOpen := sealer.Open(tampered); errOpen == nil {
		t.Fatalf("expected tampered ciphertext to fail")
	}
}

func TestNilSealerPassthrough(t *testing.T) {
	var sealer *Sealer
	sealed, errSeal := sealer.Seal([]byte("plain"))
	if errSeal != nil {
		t.Fatalf("Seal: %v", errSeal)
	}
	if string(sealed) != "plain" {
		t.Fatalf("expected passthrough, got %q", sealed)
	}
	opened, errOpen := sealer.Open(sealed)
	if errOpen != nil {
		t.Fatalf("Open: %v", errOpen)
	}
	if string(opened) != "plain" {
		t.Fatalf("expected passthrough, got %q", opened)
	}
}

func TestDecodeKey(t *testing.T) {
	key := newTestKey(t)
	decoded, errDecode := DecodeKey(base64.StdEncoding.EncodeToString(key))
	if errDecode != nil {
		t.Fatalf("DecodeKey: %v", errDecode)
	}
	if !bytes.Equal(decoded, key) {
		t.Fatalf("expected decoded key to match")
	}

	if _, errDecode = DecodeKey("not base64!!!"); errDecode == nil {
		t.Fatalf("expected invalid base64 to fail")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, errDecode = DecodeKey(short); !errors.Is(errDecode, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", errDecode)
	}
}

func TestNewSealerRejectsBadKeyLength(t *testing.T) {
	if _, errNew := NewSealer([]byte("short")); !errors.Is(errNew, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", errNew)
	}
}
