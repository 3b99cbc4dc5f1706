package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/clinic-keeper/internal/crypto"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/monitor"
	"github.com/MKhiriev/clinic-keeper/internal/store"
	"github.com/MKhiriev/clinic-keeper/internal/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// switchableEnv lets a test change the user agent mid-session.
type switchableEnv struct {
	ua atomic.Value
}

func newSwitchableEnv(ua string) *switchableEnv {
	e := &switchableEnv{}
	e.ua.Store(ua)
	return e
}

func (e *switchableEnv) UserAgent() string { return e.ua.Load().(string) }
func (e *switchableEnv) Set(ua string)     { e.ua.Store(ua) }

func sequentialIDs() utils.IDGenerator {
	var n atomic.Int64
	return utils.GeneratorFunc(func() string {
		return fmt.Sprintf("session-%03d", n.Add(1))
	})
}

type fixture struct {
	clock    *fakeClock
	env      *switchableEnv
	backend  store.Backend
	store    *store.SecureStore
	monitor  *monitor.Monitor
	sessions *SessionRegistry
}

// newFixture uses a store budget large enough that throttling never gets in
// the way; newDefaultBudgetFixture keeps the production budget.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.Options{MaxAttempts: 1000})
}

func newDefaultBudgetFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.Options{})
}

func newFixtureWithStore(t *testing.T, opts store.Options) *fixture {
	t.Helper()

	f := &fixture{
		clock:   newFakeClock(),
		env:     newSwitchableEnv("Mozilla/5.0 (clinic dashboard)"),
		backend: store.NewMemoryBackend(),
	}

	key := crypto.NewLightKeyChain().DeriveStoreKey("test-secret", "test-salt")
	cipher, err := crypto.NewCBCCipher(key)
	require.NoError(t, err)

	f.monitor = monitor.New(monitor.Options{Now: f.clock.Now}, logger.Nop())
	opts.Now = f.clock.Now
	f.store = store.NewSecureStore(f.backend, cipher, f.monitor, opts, logger.Nop())
	f.sessions = NewSessionRegistry(f.store, f.env, sequentialIDs(), RegistryOptions{Now: f.clock.Now}, logger.Nop())

	return f
}

func (f *fixture) tokenManager(refresher TokenRefresher) *TokenManager {
	return NewTokenManager(f.store, f.sessions, refresher, f.monitor, TokenOptions{Now: f.clock.Now}, logger.Nop())
}
