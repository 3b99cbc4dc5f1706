// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// keyChain is the private implementation of [KeyChain].
type keyChain struct {
	// Argon2id tuning parameters. Stored in the struct so tests can use a
	// cheaper profile.
	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8
	argonKeyLen  uint32
}

// NewKeyChain constructs a [KeyChain] with the Argon2id parameters
// recommended by OWASP (2024):
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
//   - key length:  32 bytes (256 bits)
//
// Derivation runs once per process, when the secure store is built.
func NewKeyChain() KeyChain {
	return &keyChain{
		argonTime:    1,
		argonMemory:  64 * 1024, // 64 MiB
		argonThreads: 4,
		argonKeyLen:  32, // 256 bits
	}
}

// NewLightKeyChain constructs a [KeyChain] with a small memory cost. It
// produces keys of the same length and is meant for tests and short-lived
// tooling where a 64 MiB allocation per derivation is wasteful.
func NewLightKeyChain() KeyChain {
	return &keyChain{
		argonTime:    1,
		argonMemory:  1024, // 1 MiB
		argonThreads: 1,
		argonKeyLen:  32,
	}
}

// DeriveStoreKey implements [KeyChain].
func (k *keyChain) DeriveStoreKey(secret, salt string) []byte {
	return argon2.IDKey(
		[]byte(secret),
		[]byte(salt),
		k.argonTime,
		k.argonMemory,
		k.argonThreads,
		k.argonKeyLen,
	)
}

// ResolveSecrets returns the secret and salt for the store key. An empty
// configured secret falls back to a digest of origin; an empty salt falls
// back to a digest of userAgent. The fallback is deterministic for a given
// environment so the store stays readable across restarts, and it is not a
// security boundary.
func ResolveSecrets(secret, salt, origin, userAgent string) (string, string) {
	if secret == "" {
		secret = fallbackDigest("origin", origin)
	}
	if salt == "" {
		salt = fallbackDigest("user-agent", userAgent)
	}
	return secret, salt
}

func fallbackDigest(label, value string) string {
	sum := sha256.Sum256([]byte(label + ":" + value))
	return hex.EncodeToString(sum[:])
}
