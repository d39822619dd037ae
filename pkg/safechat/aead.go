// SPDX-License-Identifier: LGPL-3.0-or-later

package safechat

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealRequest derives a per-message key from masterKey via HKDF-SHA256
// (no salt; the random nonce is the HKDF info) and seals plaintext with
// ChaCha20-Poly1305, matching the webhook payload encryption scheme so the
// two AEAD transports share one code path in spirit (spec.md §4.8).
func sealRequest(masterKey, plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	key, err := derive(masterKey, nonce)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("init aead: %w", err)
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

func openResponse(masterKey, nonce, ciphertext []byte) ([]byte, error) {
	key, err := derive(masterKey, nonce)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

func derive(masterKey, info []byte) ([]byte, error) {
	hk := hkdf.New(sha256.New, masterKey, nil, info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
