package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/store"
	"github.com/MKhiriev/clinic-keeper/models"
)

func sessionIDs(sessions []models.SessionInfo) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.SessionID)
	}
	return out
}

func TestSessionRegistry_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "session-001", id)

	info, ok := f.sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, "42", info.UserID)
	assert.Equal(t, "Mozilla/5.0 (clinic dashboard)", info.UserAgentFingerprint)
	assert.Equal(t, "client", info.IPAddress)
	assert.Equal(t, f.clock.Now(), info.LoginTime)
	assert.Equal(t, f.clock.Now(), info.LastActivity)
	assert.True(t, f.sessions.IsValid(id))
}

func TestSessionRegistry_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.sessions.Validate("nope"), ErrSessionNotFound)
	})

	t.Run("timed out", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.sessions.Create(ctx, "42")
		require.NoError(t, err)

		f.clock.Advance(DefaultSessionTimeout)
		assert.NoError(t, f.sessions.Validate(id))

		f.clock.Advance(time.Second)
		assert.ErrorIs(t, f.sessions.Validate(id), ErrSessionExpired)
	})

	t.Run("fingerprint mismatch wins over freshness", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.sessions.Create(ctx, "42")
		require.NoError(t, err)

		f.env.Set("curl/8.0")
		assert.ErrorIs(t, f.sessions.Validate(id), ErrFingerprintMismatch)
		assert.False(t, f.sessions.IsValid(id))
	})
}

func TestSessionRegistry_TouchExtendsAndPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)

	f.clock.Advance(20 * time.Hour)
	f.sessions.Touch(ctx, id)
	f.clock.Advance(20 * time.Hour)
	assert.True(t, f.sessions.IsValid(id))
	assert.True(t, f.sessions.Dirty())

	require.NoError(t, f.sessions.Flush(ctx))
	assert.False(t, f.sessions.Dirty())

	reloaded := NewSessionRegistry(f.store, f.env, sequentialIDs(), RegistryOptions{Now: f.clock.Now}, logger.Nop())
	require.NoError(t, reloaded.Reload(ctx))
	info, ok := reloaded.Get(id)
	require.True(t, ok)
	assert.True(t, f.clock.Now().Add(-20*time.Hour).Equal(info.LastActivity))
}

func TestSessionRegistry_EvictOldest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 4; i++ {
		_, err := f.sessions.Create(ctx, "42")
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	_, err := f.sessions.Create(ctx, "7")
	require.NoError(t, err)

	assert.Equal(t, 2, f.sessions.EvictOldest(ctx, "42", 2))
	assert.Equal(t, []string{"session-003", "session-004"}, sessionIDs(f.sessions.UserSessions("42")))
	assert.Len(t, f.sessions.UserSessions("7"), 1)

	assert.Equal(t, 0, f.sessions.EvictOldest(ctx, "42", 5))
}

func TestSessionRegistry_SweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	f.clock.Advance(23 * time.Hour)
	fresh, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	assert.Equal(t, 1, f.sessions.SweepExpired(ctx))
	_, ok := f.sessions.Get(old)
	assert.False(t, ok)
	_, ok = f.sessions.Get(fresh)
	assert.True(t, ok)

	assert.Equal(t, 0, f.sessions.SweepExpired(ctx))
}

func TestSessionRegistry_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, "42")
	require.NoError(t, err)

	f.sessions.Remove(ctx, a)
	f.sessions.Remove(ctx, a)
	assert.Equal(t, 1, f.sessions.Len())

	f.sessions.Clear(ctx)
	assert.Equal(t, 0, f.sessions.Len())
	assert.False(t, f.store.HasItem(ctx, sessionsKey))
}

func TestSessionRegistry_ReloadCorruptedIsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	require.NoError(t, f.backend.Set(ctx, f.store.Prefix()+"_"+sessionsKey, "garbage"))

	require.NoError(t, f.sessions.Reload(ctx))
	assert.Equal(t, 0, f.sessions.Len())
	assert.False(t, f.store.HasItem(ctx, sessionsKey))
}

func TestSessionRegistry_CreateFailsWhenThrottled(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, store.Options{MaxAttempts: 2})

	_, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, "42")
	require.NoError(t, err)

	_, err = f.sessions.Create(ctx, "42")
	assert.ErrorIs(t, err, store.ErrThrottled)
	assert.Equal(t, 2, f.sessions.Len())

	f.clock.Advance(store.DefaultBlockDuration + time.Second)
	id, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "session-004", id)
}

func TestSessionRegistry_TouchDoesNotSpendStoreBudget(t *testing.T) {
	ctx := context.Background()
	f := newDefaultBudgetFixture(t)

	id, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	for i := 0; i < 3*store.DefaultMaxAttempts; i++ {
		f.sessions.Touch(ctx, id)
	}

	_, err = f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	assert.False(t, f.sessions.Dirty())
}

func TestSessionRegistry_ReloadKeepsUnwrittenChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	kept, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	dropped, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	f.sessions.Touch(ctx, kept)

	// drop the session from memory without the store seeing it
	f.sessions.mu.Lock()
	f.sessions.removeLocked(dropped)
	f.sessions.mu.Unlock()

	require.NoError(t, f.sessions.Reload(ctx))
	info, ok := f.sessions.Get(kept)
	require.True(t, ok)
	assert.True(t, f.clock.Now().Equal(info.LastActivity))
	_, ok = f.sessions.Get(dropped)
	assert.False(t, ok)

	require.NoError(t, f.sessions.Flush(ctx))
	require.NoError(t, f.sessions.Reload(ctx))
	assert.Equal(t, 1, f.sessions.Len())
}

func TestSessionRegistry_SweepFlushesTouches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.sessions.Create(ctx, "42")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	f.sessions.Touch(ctx, id)
	require.True(t, f.sessions.Dirty())

	f.sessions.Sweep(ctx)
	assert.False(t, f.sessions.Dirty())

	reloaded := NewSessionRegistry(f.store, f.env, sequentialIDs(), RegistryOptions{Now: f.clock.Now}, logger.Nop())
	require.NoError(t, reloaded.Reload(ctx))
	info, ok := reloaded.Get(id)
	require.True(t, ok)
	assert.True(t, f.clock.Now().Equal(info.LastActivity))
}
