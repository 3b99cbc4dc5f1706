// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package crypto holds the symmetric cipher adapter used by the secure store
// and the key derivation that turns the configured secret and salt into a
// cipher key.
package crypto

// Cipher encrypts and decrypts UTF-8 strings into self-contained records.
// Every Encrypt call uses a fresh random IV; the IV travels inside the
// record so Decrypt needs nothing but the key.
type Cipher interface {
	// Encrypt returns the record for plain.
	Encrypt(plain string) (string, error)

	// Decrypt parses and decrypts a record produced by Encrypt. Any record
	// that fails the shape check or the padding check yields
	// [ErrMalformedRecord].
	Decrypt(record string) (string, error)
}

// KeyChain derives the store key. The derived key is the only value ever
// handed to the block cipher; the literal secret and salt never are.
type KeyChain interface {
	// DeriveStoreKey derives a 256-bit key from secret and salt with a
	// one-way function.
	DeriveStoreKey(secret, salt string) []byte
}
