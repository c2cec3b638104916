// Package secret seals credentials before they are written to storage.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix marks values produced by Seal so plaintext rows written before
// a key was configured can still be read.
const sealedPrefix = "sb1:"

const nonceSize = 24

var (
	ErrDecrypt     = errors.New("secret: value could not be decrypted")
	ErrKeyRequired = errors.New("secret: sealed value found but no key is configured")
)

// Box encrypts and decrypts short secrets with NaCl secretbox.
// A Box without a key stores values as plaintext.
type Box struct {
	key  *[32]byte
	rand io.Reader
}

// NewBox creates a Box. key may be nil.
func NewBox(key *[32]byte) *Box {
	return &Box{key: key, rand: rand.Reader}
}

// Enabled reports whether values are encrypted
func (b *Box) Enabled() bool {
	return b != nil && b.key != nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" || !b.Enabled() {
		return plaintext, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: read nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, b.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix
// are returned unchanged.
func (b *Box) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if !b.Enabled() {
		return "", ErrKeyRequired
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
