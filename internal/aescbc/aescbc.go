// Package aescbc implements the single-shot AES-128-CBC segment
// decryption used by the streaming service's clear-key delivery.
package aescbc

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

var (
	// ErrCiphertextSize reports ciphertext that is empty or not a
	// multiple of the AES block size.
	ErrCiphertextSize = errors.New("ciphertext is not a multiple of the block size")
	// ErrPadding reports invalid PKCS#7 padding after decryption.
	ErrPadding = errors.New("invalid pkcs7 padding")
)

// Decrypt decrypts a complete segment with AES-128-CBC and strips the
// PKCS#7 padding. Each segment is a fresh CBC chain; the IV is never
// carried over from a previous segment.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("iv length %d does not match block size %d", len(iv), block.BlockSize())
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrCiphertextSize
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext, block.BlockSize())
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-n], nil
}
