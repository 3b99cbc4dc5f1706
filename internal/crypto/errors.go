package crypto

import "errors"

var (
	// ErrMalformedRecord is returned when a stored record does not have the
	// hex(IV) + base64(ciphertext) shape or its padding is invalid.
	ErrMalformedRecord = errors.New("malformed encrypted record")

	// ErrInvalidKey is returned when the cipher key is not 32 bytes long.
	ErrInvalidKey = errors.New("cipher key must be 32 bytes")
)
