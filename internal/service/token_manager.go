// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/store"
	"github.com/MKhiriev/clinic-keeper/models"
)

const (
	tokensKey  = "auth_tokens"
	refreshKey = "refresh"

	DefaultRefreshThreshold = 5 * time.Minute
	DefaultRefreshTimeout   = 15 * time.Second
)

// AuthState is the position of the token manager in its lifecycle.
type AuthState int

const (
	StateAnonymous AuthState = iota
	StateAuthenticated
	StateRefreshing
)

func (s AuthState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// TokenOptions tune a [TokenManager].
type TokenOptions struct {
	// RefreshThreshold is how close to expiry a token read starts a
	// background refresh instead of returning the token.
	RefreshThreshold time.Duration
	// RefreshTimeout bounds a single refresh exchange.
	RefreshTimeout time.Duration
	Now            func() time.Time
}

func (o TokenOptions) withDefaults() TokenOptions {
	if o.RefreshThreshold <= 0 {
		o.RefreshThreshold = DefaultRefreshThreshold
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = DefaultRefreshTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// TokenManager owns the single live [models.TokenData] of this client.
//
// State moves ANONYMOUS -> AUTHENTICATED -> (REFRESHING) -> AUTHENTICATED or
// ANONYMOUS. Every failure on the way out of AUTHENTICATED clears all token
// and session state, so there is never a half-refreshed pair.
type TokenManager struct {
	store     SecureKV
	sessions  *SessionRegistry
	refresher TokenRefresher
	recorder  EventRecorder
	opts      TokenOptions
	logger    *logger.Logger

	mu      sync.RWMutex
	current *models.TokenData

	// writeMu serialises every change of the live pair. generation is bumped
	// by each save, clear and reload under writeMu; a refresh whose starting
	// generation is gone by the time the server answers is discarded.
	writeMu    sync.Mutex
	generation uint64

	group      singleflight.Group
	refreshing atomic.Bool
	background sync.WaitGroup
}

func NewTokenManager(kv SecureKV, sessions *SessionRegistry, refresher TokenRefresher, recorder EventRecorder, opts TokenOptions, log *logger.Logger) *TokenManager {
	return &TokenManager{
		store:     kv,
		sessions:  sessions,
		refresher: refresher,
		recorder:  recorder,
		opts:      opts.withDefaults(),
		logger:    log.WithComponent("token_manager"),
	}
}

func (m *TokenManager) snapshot() *models.TokenData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	data := *m.current
	return &data
}

// SaveTokens stores a new pair under a fresh session and reports whether the
// client is now logged in. A false result means the pair could not be
// persisted and the caller must treat the login as failed.
func (m *TokenManager) SaveTokens(ctx context.Context, access, refresh, userID string, expiresIn int64) bool {
	if _, err := m.saveTokens(ctx, access, refresh, userID, expiresIn); err != nil {
		m.logger.Err(err).Str("user_id", userID).Msg("error saving tokens")
		return false
	}
	return true
}

func (m *TokenManager) saveTokens(ctx context.Context, access, refresh, userID string, expiresIn int64) (*models.TokenData, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.generation++
	return m.writeTokens(ctx, access, refresh, userID, expiresIn)
}

// pinned returns the live pair together with the generation it belongs to.
func (m *TokenManager) pinned() (*models.TokenData, uint64) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.snapshot(), m.generation
}

// writeTokens persists a new pair under a fresh session. Callers hold writeMu.
func (m *TokenManager) writeTokens(ctx context.Context, access, refresh, userID string, expiresIn int64) (*models.TokenData, error) {
	if access == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrInvalidDataProvided)
	}

	sessionID, err := m.sessions.Create(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenPersist, err)
	}

	now := m.opts.Now()
	data := &models.TokenData{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		IssuedAt:     now,
		SessionID:    sessionID,
		UserID:       userID,
	}

	if err = m.store.TrySet(ctx, tokensKey, data); err != nil {
		m.sessions.Remove(ctx, sessionID)
		return nil, fmt.Errorf("%w: %w", ErrTokenPersist, err)
	}

	m.sessions.EvictOldest(ctx, userID, m.sessions.MaxSessions())

	m.mu.Lock()
	m.current = data
	m.mu.Unlock()

	m.logger.Info().Str("user_id", userID).Time("expires_at", data.ExpiresAt).Msg("tokens saved")
	return data, nil
}

// GetAccessToken returns the access token when it can be used right now.
//
// A missing, expired or session-invalid token yields false; the last two
// also log the client out. A token inside the refresh threshold starts a
// background refresh and yields false for this call, the caller retries.
func (m *TokenManager) GetAccessToken(ctx context.Context) (string, bool) {
	data, gen := m.pinned()
	if data == nil {
		return "", false
	}

	if err := m.checkSession(data); err != nil {
		m.clearIfCurrent(ctx, gen)
		return "", false
	}

	now := m.opts.Now()
	if data.Expired(now) {
		m.recordExpired(data, "access token expired")
		m.clearIfCurrent(ctx, gen)
		return "", false
	}

	if data.ExpiresWithin(now, m.opts.RefreshThreshold) {
		m.refreshInBackground()
		return "", false
	}

	m.sessions.Touch(ctx, data.SessionID)
	return data.AccessToken, true
}

// AccessToken implements adapter.TokenSource.
func (m *TokenManager) AccessToken(ctx context.Context) (string, bool) {
	return m.GetAccessToken(ctx)
}

// checkSession validates the session of data and records why it failed.
func (m *TokenManager) checkSession(data *models.TokenData) error {
	err := m.sessions.Validate(data.SessionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrFingerprintMismatch):
		m.recorder.Record(models.SecurityEvent{
			Type:     models.EventSessionHijackSuspected,
			Severity: models.SeverityHigh,
			Message:  "session used from a different client fingerprint",
			Details:  map[string]string{"session_id": data.SessionID, "user_id": data.UserID},
		})
	case errors.Is(err, ErrSessionExpired):
		m.recordExpired(data, "session timed out")
	}
	return err
}

func (m *TokenManager) recordExpired(data *models.TokenData, msg string) {
	m.recorder.Record(models.SecurityEvent{
		Type:     models.EventSessionExpired,
		Severity: models.SeverityLow,
		Message:  msg,
		Details:  map[string]string{"session_id": data.SessionID, "user_id": data.UserID},
	})
}

func (m *TokenManager) refreshInBackground() {
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		if _, err := m.RefreshTokens(context.Background()); err != nil {
			m.logger.Warn().Err(err).Msg("background token refresh failed")
		}
	}()
}

// RefreshTokens exchanges the refresh token for a new pair. Concurrent
// callers share one exchange and all receive its result. The exchange is not
// cancelled when a caller's ctx is; that caller just stops waiting.
//
// Any failure clears all token and session state.
func (m *TokenManager) RefreshTokens(ctx context.Context) (*models.TokenData, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data := *res.Val.(*models.TokenData)
		return &data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *TokenManager) refresh(ctx context.Context) (*models.TokenData, error) {
	m.refreshing.Store(true)
	defer m.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(ctx, m.opts.RefreshTimeout)
	defer cancel()

	old, gen := m.pinned()
	if old == nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNotAuthenticated)
	}

	if err := m.checkSession(old); err != nil {
		return nil, m.failRefresh(ctx, gen, old, err)
	}

	pair, err := m.refresher.RefreshTokens(ctx, old.RefreshToken)
	if err != nil {
		return nil, m.failRefresh(ctx, gen, old, err)
	}

	refreshToken := pair.RefreshToken
	if refreshToken == "" {
		refreshToken = old.RefreshToken
	}
	userID := pair.UserID
	if userID == "" {
		userID = old.UserID
	}

	data, err := m.commitRefresh(ctx, gen, old, pair.AccessToken, refreshToken, userID, pair.ExpiresIn)
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		m.logger.Info().Str("user_id", old.UserID).Msg("tokens changed during refresh, discarding new pair")
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	case err != nil:
		return nil, m.failRefresh(ctx, gen+1, old, err)
	}

	m.logger.Info().Str("user_id", userID).Msg("tokens refreshed")
	return data, nil
}

// commitRefresh stores the refreshed pair unless the tokens were cleared,
// saved or reloaded since gen was taken.
func (m *TokenManager) commitRefresh(ctx context.Context, gen uint64, old *models.TokenData, access, refresh, userID string, expiresIn int64) (*models.TokenData, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.generation != gen {
		return nil, ErrNotAuthenticated
	}

	m.generation++
	data, err := m.writeTokens(ctx, access, refresh, userID, expiresIn)
	if err != nil {
		return nil, err
	}
	m.sessions.Remove(ctx, old.SessionID)
	return data, nil
}

func (m *TokenManager) failRefresh(ctx context.Context, gen uint64, old *models.TokenData, cause error) error {
	m.recorder.Record(models.SecurityEvent{
		Type:     models.EventTokenRefreshFailed,
		Severity: models.SeverityMedium,
		Message:  "token refresh failed, signing out",
		Details:  map[string]string{"user_id": old.UserID, "error": cause.Error()},
	})
	m.clearIfCurrent(ctx, gen)
	return fmt.Errorf("%w: %w", ErrRefreshFailed, cause)
}

// ClearTokens removes the current session and the persisted pair. It is
// safe to call without a live token. A refresh in flight when the tokens are
// cleared is discarded.
func (m *TokenManager) ClearTokens(ctx context.Context) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.clearLocked(ctx)
}

// clearIfCurrent clears the tokens only when nothing replaced them since gen.
func (m *TokenManager) clearIfCurrent(ctx context.Context, gen uint64) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.generation == gen {
		m.clearLocked(ctx)
	}
}

func (m *TokenManager) clearLocked(ctx context.Context) {
	m.generation++

	m.mu.Lock()
	data := m.current
	m.current = nil
	m.mu.Unlock()

	if data != nil {
		m.sessions.Remove(ctx, data.SessionID)
	}
	m.store.Remove(ctx, tokensKey)
}

// Wipe implements the monitor's Wiper.
func (m *TokenManager) Wipe(ctx context.Context) error {
	m.ClearTokens(ctx)
	return nil
}

// HasValidToken reports whether a token exists, is not expired and belongs
// to a valid session. Unlike GetAccessToken it has no side effects.
func (m *TokenManager) HasValidToken() bool {
	data := m.snapshot()
	if data == nil {
		return false
	}
	return !data.Expired(m.opts.Now()) && m.sessions.IsValid(data.SessionID)
}

// State reports the lifecycle state.
func (m *TokenManager) State() AuthState {
	if m.refreshing.Load() {
		return StateRefreshing
	}
	if m.snapshot() != nil {
		return StateAuthenticated
	}
	return StateAnonymous
}

// CurrentUserID returns the owner of the live token, or "" when anonymous.
func (m *TokenManager) CurrentUserID() string {
	if data := m.snapshot(); data != nil {
		return data.UserID
	}
	return ""
}

// Current returns a copy of the live token.
func (m *TokenManager) Current() (models.TokenData, bool) {
	if data := m.snapshot(); data != nil {
		return *data, true
	}
	return models.TokenData{}, false
}

// Reload reads the persisted pair, picking up logins and logouts made by
// another process.
func (m *TokenManager) Reload(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var loaded *models.TokenData
	var data models.TokenData
	err := m.store.TryGetFresh(ctx, tokensKey, &data)
	switch {
	case err == nil:
		loaded = &data
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupted):
	default:
		return fmt.Errorf("error loading tokens: %w", err)
	}

	m.generation++
	m.mu.Lock()
	m.current = loaded
	m.mu.Unlock()
	return nil
}

// Wait blocks until background refreshes have finished.
func (m *TokenManager) Wait() {
	m.background.Wait()
}
