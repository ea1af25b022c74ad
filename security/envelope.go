// Package security implements the optional cryptographic envelope the core
// frame codec refuses to parse on its own: AES-CTR-128 encryption of the
// post-header bytes, authenticated by a truncated HMAC-MD5 tag over the
// plaintext header plus ciphertext. Nothing in command or frame imports
// this package — a security_enabled frame is rejected by frame.Parse
// unless a host wires this envelope in front of it itself.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"errors"
)

// MACSize is the truncated HMAC-MD5 tag length appended after the
// ciphertext, per §6's "trailing 5-byte MAC".
const MACSize = 5

// KeySize is the required AES-128 key length.
const KeySize = 16

var (
	ErrKeySize = errors.New("security: key must be 16 bytes (AES-128)")
	ErrMAC     = errors.New("security: MAC verification failed")
	ErrShort   = errors.New("security: sealed payload shorter than the MAC")
)

// Envelope seals and opens LoLaN payloads under one AES-128 key and one
// HMAC-MD5 key, the way aes_ctr_encrypt and the hmac/md5 helpers in the
// source's security scaffolding combine, minus the file-scope encryption
// context the C code threads through a void* — Go's cipher.Block/cipher.Stream
// already own that state.
type Envelope struct {
	block  cipher.Block
	macKey []byte
}

// New builds an Envelope from a 16-byte AES key and an HMAC-MD5 key (any
// length; per RFC 2104 it is hashed down if longer than the block size).
func New(aesKey, macKey []byte) (*Envelope, error) {
	if len(aesKey) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, err
	}
	return &Envelope{block: block, macKey: macKey}, nil
}

// Seal encrypts plaintext under counter (a 16-byte CTR nonce, incremented
// per AES block exactly as aes_ctr_encrypt does) and returns
// ciphertext || truncated-HMAC-MD5(header || ciphertext).
func (e *Envelope) Seal(header, plaintext []byte, counter [aes.BlockSize]byte) []byte {
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(e.block, counter[:]).XORKeyStream(ciphertext, plaintext)

	tag := e.tag(header, ciphertext)

	out := make([]byte, 0, len(ciphertext)+MACSize)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out
}

// Open verifies sealed's trailing tag over header plus the ciphertext
// portion, then decrypts and returns the plaintext. It returns ErrMAC
// without decrypting anything if the tag does not match.
func (e *Envelope) Open(header, sealed []byte, counter [aes.BlockSize]byte) ([]byte, error) {
	if len(sealed) < MACSize {
		return nil, ErrShort
	}
	ciphertext := sealed[:len(sealed)-MACSize]
	gotTag := sealed[len(sealed)-MACSize:]

	if !hmac.Equal(e.tag(header, ciphertext), gotTag) {
		return nil, ErrMAC
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(e.block, counter[:]).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

func (e *Envelope) tag(header, ciphertext []byte) []byte {
	mac := hmac.New(md5.New, e.macKey)
	mac.Write(header)
	mac.Write(ciphertext)
	return mac.Sum(nil)[:MACSize]
}
