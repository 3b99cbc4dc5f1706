// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// ivHexLen is the length of the hex-encoded IV prefix of every record.
const ivHexLen = aes.BlockSize * 2

// cbcCipher is the AES-256-CBC implementation of [Cipher].
//
// Record layout: hex(IV) (32 chars) ‖ base64(ciphertext). Plaintext is
// PKCS#7 padded to the block size.
type cbcCipher struct {
	block cipher.Block
	rand  io.Reader
}

// NewCBCCipher constructs a [Cipher] from a 32-byte key.
func NewCBCCipher(key []byte) (Cipher, error) {
	return newCBCCipher(key, rand.Reader)
}

func newCBCCipher(key []byte, random io.Reader) (*cbcCipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	return &cbcCipher{block: block, rand: random}, nil
}

// Encrypt implements [Cipher].
func (c *cbcCipher) Encrypt(plain string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt implements [Cipher].
func (c *cbcCipher) Decrypt(record string) (string, error) {
	if len(record) <= ivHexLen {
		return "", fmt.Errorf("%w: record too short", ErrMalformedRecord)
	}

	iv, err := hex.DecodeString(record[:ivHexLen])
	if err != nil {
		return "", fmt.Errorf("%w: iv is not hex", ErrMalformedRecord)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(record[ivHexLen:])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not base64", ErrMalformedRecord)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not block aligned", ErrMalformedRecord)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length", ErrMalformedRecord)
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedRecord)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformedRecord)
		}
	}

	return data[:len(data)-n], nil
}
