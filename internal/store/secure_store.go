// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/crypto"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/models"
)

// Defaults used when the matching [Options] field is zero.
const (
	DefaultPrefix        = "clinic_secure"
	DefaultMaxAttempts   = 10
	DefaultBlockDuration = 15 * time.Minute
	DefaultCacheTTL      = 5 * time.Minute
	DefaultCacheSize     = 128
)

// emptyStringRecord is what an empty string value is stored as, since an
// empty plaintext marks a record as corrupted.
const emptyStringRecord = `""`

// Options tune a [SecureStore].
type Options struct {
	Prefix        string
	MaxAttempts   int
	BlockDuration time.Duration
	CacheTTL      time.Duration
	CacheSize     int

	// Now is the clock used for the cache and the throttle.
	Now func() time.Time
}

// OptionsFromConfig maps client configuration onto store options.
func OptionsFromConfig(cfg *config.ClientConfig) Options {
	return Options{
		Prefix:        cfg.App.StorePrefix,
		MaxAttempts:   cfg.Security.MaxAttempts,
		BlockDuration: cfg.Security.BlockDuration,
		CacheTTL:      cfg.Security.CacheTTL,
		CacheSize:     cfg.Security.CacheSize,
	}
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BlockDuration <= 0 {
		o.BlockDuration = DefaultBlockDuration
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// SecureStore is an encrypted key-value store over a [Backend]. Every value
// is serialised, encrypted with a fresh IV and written under
// "<prefix>_<key>". Decrypted values are kept in a short-lived bounded cache,
// and each key has an operation budget after which reads and writes are
// refused for a while.
//
// Records that fail to decrypt or decode are deleted on sight, so a
// corrupted record costs one failed read and never more.
type SecureStore struct {
	backend  Backend
	cipher   crypto.Cipher
	recorder EventRecorder
	opts     Options
	logger   *logger.Logger

	mu       sync.Mutex
	cache    *readCache
	counters *accessCounters
}

// NewSecureStore builds a store. recorder may be nil.
func NewSecureStore(backend Backend, cipher crypto.Cipher, recorder EventRecorder, opts Options, log *logger.Logger) *SecureStore {
	opts = opts.withDefaults()
	return &SecureStore{
		backend:  backend,
		cipher:   cipher,
		recorder: recorder,
		opts:     opts,
		logger:   log.WithComponent("secure_store"),
		cache:    newReadCache(opts.CacheTTL, opts.CacheSize),
		counters: newAccessCounters(opts.MaxAttempts, opts.BlockDuration),
	}
}

// Prefix returns the namespace prefix of the store.
func (s *SecureStore) Prefix() string {
	return s.opts.Prefix
}

func (s *SecureStore) fullKey(key string) string {
	return s.keyPrefix() + key
}

func (s *SecureStore) keyPrefix() string {
	return s.opts.Prefix + "_"
}

func (s *SecureStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters.allow(key, s.opts.Now())
}

// Set stores value under key and reports success.
func (s *SecureStore) Set(ctx context.Context, key string, value any) bool {
	if err := s.TrySet(ctx, key, value); err != nil {
		s.logFailure(err, "Set", key)
		return false
	}
	return true
}

// TrySet is Set with the failure reason: [ErrThrottled], [ErrSerialize],
// [ErrCrypto] or [ErrBackend].
func (s *SecureStore) TrySet(ctx context.Context, key string, value any) error {
	if !s.allow(key) {
		return ErrThrottled
	}

	plain, err := serialize(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	record, err := s.cipher.Encrypt(plain)
	if err != nil {
		s.record(models.EventCryptoFailure, models.SeverityHigh, "encryption failed", key, err)
		return fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	if err := s.backend.Set(ctx, s.fullKey(key), record); err != nil {
		s.record(models.EventStorageFailure, models.SeverityHigh, "storage write failed", key, err)
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}

	s.mu.Lock()
	s.cache.put(key, plain, s.opts.Now())
	s.mu.Unlock()

	return nil
}

// Get decodes the value stored under key into target, which must be a
// non-nil pointer. A *string target receives the stored text as is.
func (s *SecureStore) Get(ctx context.Context, key string, target any) bool {
	if err := s.TryGet(ctx, key, target); err != nil {
		s.logFailure(err, "Get", key)
		return false
	}
	return true
}

// GetFresh is Get without the read cache. Read-merge-write callers use it so
// that writes made by other processes are not lost.
func (s *SecureStore) GetFresh(ctx context.Context, key string, target any) bool {
	if err := s.TryGetFresh(ctx, key, target); err != nil {
		s.logFailure(err, "GetFresh", key)
		return false
	}
	return true
}

// TryGetFresh is GetFresh with the failure reason.
func (s *SecureStore) TryGetFresh(ctx context.Context, key string, target any) error {
	return s.tryGet(ctx, key, target, false)
}

// GetAs is the generic form of [SecureStore.Get].
func GetAs[T any](ctx context.Context, s *SecureStore, key string) (T, bool) {
	var v T
	if !s.Get(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// TryGet is Get with the failure reason: [ErrThrottled], [ErrNotFound],
// [ErrCorrupted], [ErrSerialize] or [ErrBackend].
func (s *SecureStore) TryGet(ctx context.Context, key string, target any) error {
	return s.tryGet(ctx, key, target, true)
}

func (s *SecureStore) tryGet(ctx context.Context, key string, target any, useCache bool) error {
	if err := checkTarget(target); err != nil {
		return err
	}

	if !s.allow(key) {
		return ErrThrottled
	}

	if useCache {
		s.mu.Lock()
		plain, ok := s.cache.get(key, s.opts.Now())
		s.mu.Unlock()

		if ok {
			if err := deserialize(plain, target); err == nil {
				return nil
			}
			// cached under a different shape; fall through to storage
			s.Invalidate(key)
		}
	}

	record, ok, err := s.backend.Get(ctx, s.fullKey(key))
	if err != nil {
		s.record(models.EventStorageFailure, models.SeverityHigh, "storage read failed", key, err)
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if !ok {
		return ErrNotFound
	}

	plain, err := s.cipher.Decrypt(record)
	if err != nil {
		s.record(models.EventCryptoFailure, models.SeverityHigh, "decryption failed", key, err)
		plain = ""
	}
	if plain == "" {
		return s.heal(ctx, key, errors.New("empty or undecryptable record"))
	}

	if err := deserialize(plain, target); err != nil {
		if !json.Valid([]byte(plain)) {
			return s.heal(ctx, key, err)
		}
		// well-formed record of another shape: the caller's mistake
		return fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	s.mu.Lock()
	s.cache.put(key, plain, s.opts.Now())
	s.mu.Unlock()

	return nil
}

// heal deletes a corrupted record so the next read starts clean.
func (s *SecureStore) heal(ctx context.Context, key string, cause error) error {
	s.record(models.EventCorruptedRecord, models.SeverityMedium, "corrupted record removed", key, cause)

	if err := s.backend.Remove(ctx, s.fullKey(key)); err != nil {
		s.logger.Err(err).Str("func", "SecureStore.heal").Str("key", key).Msg("error removing corrupted record")
	}

	s.mu.Lock()
	s.cache.remove(key)
	s.mu.Unlock()

	return fmt.Errorf("%w: %w", ErrCorrupted, cause)
}

// Remove deletes key together with its cache entry and access counter.
// Removing an absent key succeeds.
func (s *SecureStore) Remove(ctx context.Context, key string) bool {
	if err := s.backend.Remove(ctx, s.fullKey(key)); err != nil {
		s.record(models.EventStorageFailure, models.SeverityHigh, "storage delete failed", key, err)
		return false
	}

	s.mu.Lock()
	s.cache.remove(key)
	s.counters.remove(key)
	s.mu.Unlock()

	return true
}

// Clear removes every record under the store prefix and resets the cache
// and the access counters.
func (s *SecureStore) Clear(ctx context.Context) bool {
	s.mu.Lock()
	s.cache.reset()
	s.counters.reset()
	s.mu.Unlock()

	if err := s.clearBackend(ctx); err != nil {
		s.record(models.EventStorageFailure, models.SeverityHigh, "storage clear failed", "", err)
		return false
	}
	return true
}

func (s *SecureStore) clearBackend(ctx context.Context) error {
	if pr, ok := s.backend.(PrefixRemover); ok {
		return pr.RemovePrefix(ctx, s.keyPrefix())
	}

	keys, err := s.backend.Keys(ctx, s.keyPrefix())
	if err != nil {
		return err
	}

	var errs []error
	for _, k := range keys {
		if err := s.backend.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wipe implements the security monitor's wiper contract.
func (s *SecureStore) Wipe(ctx context.Context) error {
	if !s.Clear(ctx) {
		return ErrBackend
	}
	return nil
}

// Keys lists the stored keys with the prefix stripped.
func (s *SecureStore) Keys(ctx context.Context) []string {
	full, err := s.backend.Keys(ctx, s.keyPrefix())
	if err != nil {
		s.logger.Err(err).Str("func", "SecureStore.Keys").Msg("error listing keys")
		return nil
	}

	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, s.keyPrefix()))
	}
	return keys
}

// HasItem reports whether a record exists under key. Nothing is decrypted.
func (s *SecureStore) HasItem(ctx context.Context, key string) bool {
	_, ok, err := s.backend.Get(ctx, s.fullKey(key))
	if err != nil {
		s.logger.Err(err).Str("func", "SecureStore.HasItem").Str("key", key).Msg("error checking record")
		return false
	}
	return ok
}

// Invalidate drops the cached value of key.
func (s *SecureStore) Invalidate(key string) {
	s.mu.Lock()
	s.cache.remove(key)
	s.mu.Unlock()
}

// InvalidateAll drops every cached value.
func (s *SecureStore) InvalidateAll() {
	s.mu.Lock()
	s.cache.reset()
	s.mu.Unlock()
}

// Watch forwards backend change notifications to onChange after dropping the
// read cache. It is a no-op for backends that cannot observe other writers.
func (s *SecureStore) Watch(ctx context.Context, onChange func()) error {
	n, ok := s.backend.(ChangeNotifier)
	if !ok {
		return nil
	}
	return n.Watch(ctx, func() {
		s.InvalidateAll()
		if onChange != nil {
			onChange()
		}
	})
}

// Close closes the backend.
func (s *SecureStore) Close() error {
	return s.backend.Close()
}

func (s *SecureStore) record(eventType string, severity models.Severity, msg, key string, cause error) {
	s.logger.Warn().Err(cause).Str("event", eventType).Str("key", key).Msg(msg)

	if s.recorder == nil {
		return
	}

	details := map[string]string{}
	if key != "" {
		details["key"] = key
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	s.recorder.Record(models.SecurityEvent{
		Type:     eventType,
		Severity: severity,
		Message:  msg,
		Details:  details,
	})
}

func (s *SecureStore) logFailure(err error, op, key string) {
	ev := s.logger.Debug()
	if !errors.Is(err, ErrThrottled) && !errors.Is(err, ErrNotFound) {
		ev = s.logger.Warn()
	}
	ev.Err(err).Str("func", "SecureStore."+op).Str("key", key).Msg("secure store operation failed")
}

func serialize(value any) (string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return emptyStringRecord, nil
		}
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func checkTarget(target any) error {
	rv := reflect.ValueOf(target)
	if target == nil || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer, got %T", ErrSerialize, target)
	}
	return nil
}

func deserialize(plain string, target any) error {
	if sp, ok := target.(*string); ok {
		if plain == emptyStringRecord {
			*sp = ""
		} else {
			*sp = plain
		}
		return nil
	}
	return json.Unmarshal([]byte(plain), target)
}
