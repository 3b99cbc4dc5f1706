package store

import "errors"

// Outcomes of secure store operations. The public [SecureStore] methods
// collapse these into false/zero results; TrySet and TryGet expose them to
// callers that need to tell a throttled key from a corrupted one.
var (
	// ErrThrottled is returned when the per-key access budget is exhausted.
	// It is a normal "temporarily denied" outcome and is never recorded as
	// a security event.
	ErrThrottled = errors.New("key access throttled")

	// ErrNotFound is returned when no record exists under the key.
	ErrNotFound = errors.New("record not found")

	// ErrCorrupted is returned when a record decrypts to nothing or to
	// content that cannot be decoded. The record has been deleted by the
	// time the caller sees this error.
	ErrCorrupted = errors.New("record corrupted")

	// ErrCrypto is returned when encryption of a value fails.
	ErrCrypto = errors.New("encryption failed")

	// ErrSerialize is returned when a value cannot be JSON-encoded.
	ErrSerialize = errors.New("value serialization failed")

	// ErrBackend is returned when the persistent backend fails.
	ErrBackend = errors.New("storage backend failure")
)

// Backend errors.
var (
	// ErrUnknownDriver is returned by [NewBackend] for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown storage driver")

	// ErrNilDB is returned when a sqlite backend is built without a
	// connection.
	ErrNilDB = errors.New("db is nil")
)
