package sec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// XChaCha20Poly1305Cipher seals short values (session ids) into URL-safe strings.
// Every call uses a fresh random 24-byte nonce, prepended to the ciphertext.
type XChaCha20Poly1305Cipher struct {
	aead   cipher.AEAD
	encode func([]byte) string
	decode func(string) ([]byte, error)
}

func NewXChaCha20Poly1305Cipher(key []byte, encode func([]byte) string, decode func(string) ([]byte, error)) (*XChaCha20Poly1305Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &XChaCha20Poly1305Cipher{aead: aead, encode: encode, decode: decode}, nil
}

func NewXChaCha20Poly1305CipherBase64(key []byte) (*XChaCha20Poly1305Cipher, error) {
	return NewXChaCha20Poly1305Cipher(key, base64.RawURLEncoding.EncodeToString, base64.RawURLEncoding.DecodeString)
}

// CipherFromEncodedKey builds the cipher from a config value holding a base64 (std or url) 32-byte key.
func CipherFromEncodedKey(encodedKey string) (*XChaCha20Poly1305Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		if key, err = base64.RawURLEncoding.DecodeString(encodedKey); err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
	}
	return NewXChaCha20Poly1305CipherBase64(key)
}

func (c *XChaCha20Poly1305Cipher) EncryptEncode(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return c.encode(c.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

func (c *XChaCha20Poly1305Cipher) DecodeDecrypt(encoded string) ([]byte, error) {
	data, err := c.decode(encoded)
	if err != nil {
		return nil, err
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, data[:n], data[n:], nil)
}
