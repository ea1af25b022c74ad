package security

import (
	"bytes"
	"crypto/aes"
	"testing"
)

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	e, err := New(bytes.Repeat([]byte{0x11}, KeySize), []byte("mac-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestSealOpenRoundTrip(t *testing.T) {
	e := testEnvelope(t)
	header := []byte{0x01, 0x32, 0x00, 0x01, 0x00, 0x02, 0x00}
	plaintext := []byte("get request payload")
	var counter [aes.BlockSize]byte

	sealed := e.Seal(header, plaintext, counter)
	if len(sealed) != len(plaintext)+MACSize {
		t.Fatalf("sealed length = %d, want %d", len(sealed), len(plaintext)+MACSize)
	}

	got, err := e.Open(header, sealed, counter)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Open = %q, want %q", got, plaintext)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	e := testEnvelope(t)
	header := []byte{0x01, 0x32}
	var counter [aes.BlockSize]byte

	sealed := e.Seal(header, []byte("variable value"), counter)
	sealed[0] ^= 0xFF

	if _, err := e.Open(header, sealed, counter); err != ErrMAC {
		t.Fatalf("Open with tampered ciphertext: err = %v, want ErrMAC", err)
	}
}

func TestOpenRejectsTamperedHeader(t *testing.T) {
	e := testEnvelope(t)
	header := []byte{0x01, 0x32}
	var counter [aes.BlockSize]byte

	sealed := e.Seal(header, []byte("variable value"), counter)
	tamperedHeader := []byte{0x01, 0x33}

	if _, err := e.Open(tamperedHeader, sealed, counter); err != ErrMAC {
		t.Fatalf("Open with tampered header: err = %v, want ErrMAC", err)
	}
}

func TestNewRejectsWrongKeySize(t *testing.T) {
	if _, err := New([]byte("short"), []byte("mac")); err != ErrKeySize {
		t.Fatalf("New with short key: err = %v, want ErrKeySize", err)
	}
}
