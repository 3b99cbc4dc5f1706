package monitor

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/models"
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

type collectingSink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (s *collectingSink) Send(_ context.Context, e models.SecurityEvent) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *collectingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestMonitor(clock *fakeClock, mutate func(*Options)) *Monitor {
	opts := Options{Now: clock.Now, UserAgent: "clinic-keeper-test"}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts, logger.Nop())
}

func eventTypes(events []models.SecurityEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

// ─────────────────────────────────────────────
// Record
// ─────────────────────────────────────────────

func TestRecord_FillsTimestampAndUserAgent(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	m.Record(models.SecurityEvent{Type: models.EventCorruptedRecord, Severity: models.SeverityMedium})

	events := m.Events(Filter{})
	require.Len(t, events, 1)
	assert.Equal(t, clock.Now(), events[0].Timestamp)
	assert.Equal(t, "clinic-keeper-test", events[0].UserAgent)
}

func TestRecord_LogIsBounded(t *testing.T) {
	m := newTestMonitor(newFakeClock(), func(o *Options) { o.MaxEvents = 3 })

	for i := 0; i < 5; i++ {
		m.Record(models.SecurityEvent{
			Type:     models.EventRateLimited,
			Severity: models.SeverityLow,
			Details:  map[string]string{"n": strconv.Itoa(i)},
		})
	}

	events := m.Events(Filter{})
	require.Len(t, events, 3)
	assert.Equal(t, "2", events[0].Details["n"])
	assert.Equal(t, "4", events[2].Details["n"])
}

func TestRecord_ForwardsHighAndCriticalOnly(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)
	sink := &collectingSink{}
	m.SetSink(sink)

	m.Record(models.SecurityEvent{Type: "low", Severity: models.SeverityLow})
	m.Record(models.SecurityEvent{Type: "medium", Severity: models.SeverityMedium})
	m.Record(models.SecurityEvent{Type: "high", Severity: models.SeverityHigh})
	m.Record(models.SecurityEvent{Type: "critical", Severity: models.SeverityCritical})
	m.Flush()

	assert.ElementsMatch(t, []string{"high", "critical"}, sink.types())
}

func TestRecord_SinkErrorIsSwallowed(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)
	m.SetSink(SinkFunc(func(context.Context, models.SecurityEvent) error {
		return errors.New("collector down")
	}))

	assert.NotPanics(t, func() {
		m.Record(models.SecurityEvent{Type: "high", Severity: models.SeverityHigh})
		m.Flush()
	})
	assert.Len(t, m.Events(Filter{}), 1)
}

func TestRecord_CriticalWipesThenRedirects(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)

	var (
		mu    sync.Mutex
		order []string
	)
	step := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	m.RegisterWiper(WiperFunc(func(context.Context) error { step("store"); return nil }))
	m.RegisterWiper(WiperFunc(func(context.Context) error { step("tokens"); return errors.New("partial") }))
	m.SetNavigator(NavigatorFunc(func(reason string) { step("login:" + reason) }))

	m.Record(models.SecurityEvent{Type: models.EventInjectionAttack, Severity: models.SeverityCritical})

	assert.Equal(t, []string{"store", "tokens", "login:" + models.EventInjectionAttack}, order)
}

func TestRecord_CriticalInsideWipeDoesNotRecurse(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)

	wipes := 0
	m.RegisterWiper(WiperFunc(func(context.Context) error {
		wipes++
		m.Record(models.SecurityEvent{Type: "nested", Severity: models.SeverityCritical})
		return nil
	}))

	m.Record(models.SecurityEvent{Type: "outer", Severity: models.SeverityCritical})

	assert.Equal(t, 1, wipes)
	assert.Equal(t, []string{"outer", "nested"}, eventTypes(m.Events(Filter{})))
}

func TestRecord_HighDoesNotWipe(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)
	wiped := false
	m.RegisterWiper(WiperFunc(func(context.Context) error { wiped = true; return nil }))

	m.Record(models.SecurityEvent{Type: models.EventCryptoFailure, Severity: models.SeverityHigh})

	assert.False(t, wiped)
}

// ─────────────────────────────────────────────
// Failed logins
// ─────────────────────────────────────────────

func TestRecordFailedLogin_LocksAfterLimit(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	for i := 1; i < DefaultMaxFailedLogins; i++ {
		assert.False(t, m.RecordFailedLogin("dr.house"), "attempt %d", i)
	}
	assert.False(t, m.IsLoginLocked("dr.house"))

	assert.True(t, m.RecordFailedLogin("dr.house"))
	assert.True(t, m.IsLoginLocked("dr.house"))
	assert.False(t, m.IsLoginLocked("dr.wilson"))

	brute := m.Events(Filter{Type: models.EventBruteForceSuspected})
	require.Len(t, brute, 1)
	assert.Equal(t, models.SeverityHigh, brute[0].Severity)

	assert.True(t, m.RecordFailedLogin("dr.house"))
	assert.Len(t, m.Events(Filter{Type: models.EventBruteForceSuspected}), 1)
	assert.Len(t, m.Events(Filter{Type: models.EventFailedLogin}), DefaultMaxFailedLogins+1)
}

func TestRecordFailedLogin_WindowExpires(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	for i := 0; i < DefaultMaxFailedLogins; i++ {
		m.RecordFailedLogin("dr.house")
	}
	require.True(t, m.IsLoginLocked("dr.house"))

	clock.Advance(DefaultLoginWindow + time.Second)
	assert.False(t, m.IsLoginLocked("dr.house"))
	assert.False(t, m.RecordFailedLogin("dr.house"))
}

func TestRecordSuccessfulLogin_ResetsCount(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)

	for i := 0; i < DefaultMaxFailedLogins-1; i++ {
		m.RecordFailedLogin("dr.house")
	}
	m.RecordSuccessfulLogin("dr.house")

	assert.False(t, m.RecordFailedLogin("dr.house"))
}

// ─────────────────────────────────────────────
// Input checks
// ─────────────────────────────────────────────

func TestCheckInput(t *testing.T) {
	tests := []struct {
		name  string
		value string
		clean bool
	}{
		{name: "plain name", value: "Jonathan O'Neil", clean: true},
		{name: "phone", value: "+7 (900) 123-45-67", clean: true},
		{name: "sentence with on", value: "call once after lunch", clean: true},
		{name: "script tag", value: "<script>alert(1)</script>", clean: false},
		{name: "closing script", value: "</ScRiPt >", clean: false},
		{name: "iframe", value: `<iframe src="x">`, clean: false},
		{name: "event handler", value: `<img src=x onerror=alert(1)>`, clean: false},
		{name: "javascript uri", value: "JavaScript :void(0)", clean: false},
		{name: "union select", value: "1 UNION ALL SELECT password FROM users", clean: false},
		{name: "drop table", value: "x; DROP TABLE patients", clean: false},
		{name: "tautology", value: `' OR '1'='1`, clean: false},
		{name: "comment", value: "admin'; --", clean: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(newFakeClock(), nil)

			assert.Equal(t, tt.clean, m.CheckInput("full_name", tt.value))

			suspicious := m.Events(Filter{Type: models.EventSuspiciousInput})
			if tt.clean {
				assert.Empty(t, suspicious)
			} else {
				require.Len(t, suspicious, 1)
				assert.Equal(t, models.SeverityMedium, suspicious[0].Severity)
				assert.Equal(t, "full_name", suspicious[0].Details["field"])
			}
		})
	}
}

func TestCheckInput_RepeatedHitsEscalate(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	wiped := 0
	m.RegisterWiper(WiperFunc(func(context.Context) error { wiped++; return nil }))

	for i := 0; i < DefaultInputHitThreshold-1; i++ {
		m.CheckInput("comment", "<script>")
	}
	assert.Empty(t, m.Events(Filter{Type: models.EventInjectionAttack}))

	m.CheckInput("comment", "<script>")

	attacks := m.Events(Filter{Type: models.EventInjectionAttack})
	require.Len(t, attacks, 1)
	assert.Equal(t, models.SeverityCritical, attacks[0].Severity)
	assert.Equal(t, 1, wiped)

	// the counter restarts after escalation
	m.CheckInput("comment", "<script>")
	assert.Len(t, m.Events(Filter{Type: models.EventInjectionAttack}), 1)
}

func TestCheckInput_HitsOutsideWindowDoNotEscalate(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	for i := 0; i < DefaultInputHitThreshold; i++ {
		m.CheckInput("comment", "javascript:alert(1)")
		clock.Advance(DefaultInputWindow)
	}

	assert.Empty(t, m.Events(Filter{Type: models.EventInjectionAttack}))
}

// ─────────────────────────────────────────────
// Rate limits
// ─────────────────────────────────────────────

func TestAllow(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, func(o *Options) {
		o.RateLimits = map[string]RateLimit{ActionLogin: {Every: time.Minute, Burst: 2}}
	})

	assert.True(t, m.Allow(ActionLogin))
	assert.True(t, m.Allow(ActionLogin))
	assert.False(t, m.Allow(ActionLogin))

	limited := m.Events(Filter{Type: models.EventRateLimited})
	require.Len(t, limited, 1)
	assert.Equal(t, models.SeverityLow, limited[0].Severity)
	assert.Equal(t, ActionLogin, limited[0].Details["action"])

	clock.Advance(time.Minute)
	assert.True(t, m.Allow(ActionLogin))

	assert.True(t, m.Allow("unlimited_action"))
}

// ─────────────────────────────────────────────
// Inspection and maintenance
// ─────────────────────────────────────────────

func TestEvents_Filter(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	m.Record(models.SecurityEvent{Type: "a", Severity: models.SeverityLow})
	clock.Advance(time.Minute)
	since := clock.Now()
	m.Record(models.SecurityEvent{Type: "b", Severity: models.SeverityHigh})
	m.Record(models.SecurityEvent{Type: "a", Severity: models.SeverityMedium})

	assert.Equal(t, []string{"a", "a"}, eventTypes(m.Events(Filter{Type: "a"})))
	assert.Equal(t, []string{"b"}, eventTypes(m.Events(Filter{MinSeverity: models.SeverityHigh})))
	assert.Equal(t, []string{"b", "a"}, eventTypes(m.Events(Filter{Since: since})))
	assert.Equal(t, []string{"a"}, eventTypes(m.Events(Filter{Limit: 1})))
}

func TestStats(t *testing.T) {
	m := newTestMonitor(newFakeClock(), nil)

	for i := 0; i < DefaultMaxFailedLogins; i++ {
		m.RecordFailedLogin("dr.house")
	}

	s := m.Stats()
	assert.Equal(t, DefaultMaxFailedLogins+1, s.Total)
	assert.Equal(t, DefaultMaxFailedLogins, s.ByType[models.EventFailedLogin])
	assert.Equal(t, 1, s.BySeverity[models.SeverityHigh])
	assert.Equal(t, 1, s.LockedOut)
	require.NotNil(t, s.Last)
	assert.Equal(t, models.EventBruteForceSuspected, s.Last.Type)
}

func TestPrune(t *testing.T) {
	clock := newFakeClock()
	m := newTestMonitor(clock, nil)

	m.RecordFailedLogin("dr.house")
	m.CheckInput("comment", "<script>")
	clock.Advance(DefaultLoginWindow + time.Second)
	m.RecordFailedLogin("dr.wilson")

	m.Prune(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.logins, "dr.house")
	assert.Contains(t, m.logins, "dr.wilson")
	assert.Nil(t, m.inputHits)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.ClientConfig{
		App:      config.ClientApp{UserAgent: "clinic-keeper/1.0"},
		Adapter:  config.ClientAdapter{RequestTimeout: 3 * time.Second},
		Security: config.ClientSecurity{BlockDuration: 10 * time.Minute},
	}

	opts := OptionsFromConfig(cfg).withDefaults()

	assert.Equal(t, 10*time.Minute, opts.LoginWindow)
	assert.Equal(t, 3*time.Second, opts.SinkTimeout)
	assert.Equal(t, "clinic-keeper/1.0", opts.UserAgent)
	assert.Equal(t, DefaultMaxFailedLogins, opts.MaxFailedLogins)
	assert.Contains(t, opts.RateLimits, ActionLogin)
}
