// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"

	"github.com/MKhiriev/clinic-keeper/models"
)

// Backend is the persistent string-keyed storage surface underneath the
// secure store. It offers no atomicity across keys: every multi-key update
// may interleave with another process writing the same backend, and the last
// write wins.
type Backend interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; err is reserved for backend failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys lists every stored key that starts with prefix, prefix included.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backend's resources.
	Close() error
}

// PrefixRemover is implemented by backends that can delete every key under
// a prefix in one round trip. The secure store falls back to Keys + Remove
// otherwise.
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string) error
}

// ChangeNotifier is implemented by backends that can observe writes made by
// other processes sharing the same storage. onChange is called from a
// background goroutine until ctx is cancelled.
type ChangeNotifier interface {
	Watch(ctx context.Context, onChange func()) error
}

// EventRecorder receives security-relevant failures observed by the store.
// The security monitor implements it.
type EventRecorder interface {
	Record(event models.SecurityEvent)
}
