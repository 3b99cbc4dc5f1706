// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/store"
	"github.com/MKhiriev/clinic-keeper/internal/utils"
	"github.com/MKhiriev/clinic-keeper/models"
)

const (
	sessionsKey = "auth_sessions"

	// sessionIPPlaceholder fills SessionInfo.IPAddress; a client cannot see
	// its public address.
	sessionIPPlaceholder = "client"

	DefaultSessionTimeout = 24 * time.Hour
	DefaultMaxSessions    = 5
)

// RegistryOptions tune a [SessionRegistry].
type RegistryOptions struct {
	Timeout     time.Duration
	MaxSessions int
	Now         func() time.Time
}

func (o RegistryOptions) withDefaults() RegistryOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultSessionTimeout
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// SessionRegistry keeps the login sessions of this client. The in-memory map
// is authoritative inside the process.
//
// Create writes the whole map through to the encrypted store and fails when
// the write does. Touch only marks the map dirty; removals try to write and
// stay dirty when the store refuses. Flush (run by the sweep job and on
// shutdown) writes a dirty map, and Reload keeps local changes that were
// never written.
type SessionRegistry struct {
	store  SecureKV
	env    Environment
	ids    utils.IDGenerator
	opts   RegistryOptions
	logger *logger.Logger

	mu       sync.Mutex
	sessions map[string]models.SessionInfo
	dirty    bool
	removed  map[string]struct{}
	version  uint64

	persistMu sync.Mutex
}

func NewSessionRegistry(kv SecureKV, env Environment, ids utils.IDGenerator, opts RegistryOptions, log *logger.Logger) *SessionRegistry {
	if ids == nil {
		ids = utils.NewUUIDGenerator()
	}
	return &SessionRegistry{
		store:    kv,
		env:      env,
		ids:      ids,
		opts:     opts.withDefaults(),
		logger:   log.WithComponent("session_registry"),
		sessions: make(map[string]models.SessionInfo),
		removed:  make(map[string]struct{}),
	}
}

// changedLocked marks the map as holding changes the store has not seen.
func (r *SessionRegistry) changedLocked() {
	r.dirty = true
	r.version++
}

// removeLocked deletes sessionID and remembers the removal until it is
// written.
func (r *SessionRegistry) removeLocked(sessionID string) {
	delete(r.sessions, sessionID)
	r.removed[sessionID] = struct{}{}
	r.changedLocked()
}

// MaxSessions is the per-user session cap.
func (r *SessionRegistry) MaxSessions() int {
	return r.opts.MaxSessions
}

// Create registers a new session for userID bound to the current user agent.
// The session exists only when the store accepted it; a throttled write
// returns an error wrapping store.ErrThrottled.
func (r *SessionRegistry) Create(ctx context.Context, userID string) (string, error) {
	now := r.opts.Now()
	info := models.SessionInfo{
		SessionID:            r.ids.Generate(),
		UserID:               userID,
		UserAgentFingerprint: r.env.UserAgent(),
		IPAddress:            sessionIPPlaceholder,
		LastActivity:         now,
		LoginTime:            now,
	}

	r.mu.Lock()
	r.sessions[info.SessionID] = info
	r.changedLocked()
	r.mu.Unlock()

	if err := r.persist(ctx); err != nil {
		r.mu.Lock()
		delete(r.sessions, info.SessionID)
		r.mu.Unlock()
		return "", fmt.Errorf("error persisting session: %w", err)
	}

	r.logger.Debug().Str("session_id", info.SessionID).Str("user_id", userID).Msg("session created")
	return info.SessionID, nil
}

// Get returns the session stored under sessionID.
func (r *SessionRegistry) Get(sessionID string) (models.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sessions[sessionID]
	return info, ok
}

// Validate reports why sessionID cannot be used, or nil when it can. A
// fingerprint mismatch is reported before the timeout.
func (r *SessionRegistry) Validate(sessionID string) error {
	info, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if info.UserAgentFingerprint != r.env.UserAgent() {
		return ErrFingerprintMismatch
	}
	if info.TimedOut(r.opts.Now(), r.opts.Timeout) {
		return ErrSessionExpired
	}
	return nil
}

// IsValid reports whether sessionID exists, has not timed out and was
// created under the current user agent.
func (r *SessionRegistry) IsValid(sessionID string) bool {
	return r.Validate(sessionID) == nil
}

// Touch moves the last activity of sessionID to now. The change reaches the
// store with the next write or Flush.
func (r *SessionRegistry) Touch(_ context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.sessions[sessionID]; ok {
		info.LastActivity = r.opts.Now()
		r.sessions[sessionID] = info
		r.changedLocked()
	}
}

// Remove deletes sessionID. Removing an unknown session is a no-op.
func (r *SessionRegistry) Remove(ctx context.Context, sessionID string) {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	if ok {
		r.removeLocked(sessionID)
	}
	r.mu.Unlock()

	if ok {
		r.persistQuietly(ctx)
	}
}

// UserSessions returns the sessions of userID ordered by login time.
func (r *SessionRegistry) UserSessions(userID string) []models.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.userSessionsLocked(userID)
}

func (r *SessionRegistry) userSessionsLocked(userID string) []models.SessionInfo {
	out := make([]models.SessionInfo, 0)
	for _, info := range r.sessions {
		if info.UserID == userID {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LoginTime.Before(out[j].LoginTime)
	})
	return out
}

// EvictOldest keeps the keep most recent sessions of userID and deletes the
// rest. It returns the number of sessions removed.
func (r *SessionRegistry) EvictOldest(ctx context.Context, userID string, keep int) int {
	if keep < 0 {
		keep = 0
	}

	r.mu.Lock()
	sessions := r.userSessionsLocked(userID)
	evicted := 0
	for i := 0; i < len(sessions)-keep; i++ {
		r.removeLocked(sessions[i].SessionID)
		evicted++
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.persistQuietly(ctx)
		r.logger.Info().Str("user_id", userID).Int("evicted", evicted).Msg("evicted oldest sessions")
	}
	return evicted
}

// SweepExpired removes every timed-out session and returns how many were
// removed.
func (r *SessionRegistry) SweepExpired(ctx context.Context) int {
	now := r.opts.Now()

	r.mu.Lock()
	removed := 0
	for id, info := range r.sessions {
		if info.TimedOut(now, r.opts.Timeout) {
			r.removeLocked(id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.persistQuietly(ctx)
	}
	r.logger.Debug().Int("removed", removed).Msg("expired sessions swept")
	return removed
}

// Sweep adapts SweepExpired to a periodic task and flushes pending touches.
func (r *SessionRegistry) Sweep(ctx context.Context) {
	r.SweepExpired(ctx)
	if err := r.Flush(ctx); err != nil && !errors.Is(err, store.ErrThrottled) {
		r.logger.Err(err).Msg("error flushing sessions")
	}
}

// Flush writes the map when it holds changes the store has not seen.
func (r *SessionRegistry) Flush(ctx context.Context) error {
	if !r.Dirty() {
		return nil
	}
	return r.persist(ctx)
}

// Dirty reports whether the store is behind the in-memory map.
func (r *SessionRegistry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Len returns the number of sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reload replaces the in-memory sessions with the persisted ones. A missing
// or corrupted record leaves the registry empty. While local changes are
// unwritten, local removals and newer local activity are kept on top of the
// persisted map.
func (r *SessionRegistry) Reload(ctx context.Context) error {
	loaded := make(map[string]models.SessionInfo)
	err := r.store.TryGetFresh(ctx, sessionsKey, &loaded)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupted):
		loaded = make(map[string]models.SessionInfo)
	default:
		return fmt.Errorf("error loading sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirty {
		for id := range r.removed {
			delete(loaded, id)
		}
		for id, local := range r.sessions {
			if disk, ok := loaded[id]; ok && local.LastActivity.After(disk.LastActivity) {
				loaded[id] = local
			}
		}
	}
	r.sessions = loaded
	return nil
}

// Clear drops every session and the persisted record.
func (r *SessionRegistry) Clear(ctx context.Context) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	r.sessions = make(map[string]models.SessionInfo)
	r.removed = make(map[string]struct{})
	r.dirty = false
	r.version++
	r.mu.Unlock()

	r.store.Remove(ctx, sessionsKey)
}

// Wipe implements the monitor's Wiper.
func (r *SessionRegistry) Wipe(ctx context.Context) error {
	r.Clear(ctx)
	return nil
}

// persist writes the whole map. The map stays dirty when the write fails or
// when it changed while being written.
func (r *SessionRegistry) persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	snapshot := maps.Clone(r.sessions)
	version := r.version
	r.mu.Unlock()

	if err := r.store.TrySet(ctx, sessionsKey, snapshot); err != nil {
		return err
	}

	r.mu.Lock()
	if r.version == version {
		r.dirty = false
		r.removed = make(map[string]struct{})
	}
	r.mu.Unlock()
	return nil
}

func (r *SessionRegistry) persistQuietly(ctx context.Context) {
	err := r.persist(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrThrottled):
		r.logger.Debug().Err(err).Msg("session write throttled, kept for the next flush")
	default:
		r.logger.Err(err).Msg("error persisting sessions")
	}
}
