// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package monitor is the single funnel for security-relevant events.
//
// Every event lands in a bounded in-memory log and in the structured log.
// HIGH and CRITICAL events are also forwarded to a remote [Sink] in the
// background. A CRITICAL event triggers the destructive response: every
// registered [Wiper] runs and the [Navigator] sends the user back to login.
//
// On top of the log the monitor keeps the heuristics that raise events:
// failed-login accounting, suspicious-input detection and per-action rate
// limits.
package monitor

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/models"
)

const wipeTimeout = 10 * time.Second

type attemptWindow struct {
	count int
	first time.Time
}

func (w *attemptWindow) expired(now time.Time, window time.Duration) bool {
	return now.Sub(w.first) > window
}

// Monitor records security events and runs the responses they require.
type Monitor struct {
	opts   Options
	logger *logger.Logger

	mu        sync.Mutex
	events    []models.SecurityEvent
	sink      Sink
	wipers    []Wiper
	navigator Navigator
	logins    map[string]*attemptWindow
	inputHits *attemptWindow
	limiters  map[string]*rate.Limiter

	responding atomic.Bool
	sinkWG     sync.WaitGroup
}

// New builds a monitor. Sink, wipers and navigator are attached afterwards
// because their owners usually depend on the monitor themselves.
func New(opts Options, log *logger.Logger) *Monitor {
	opts = opts.withDefaults()

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimits))
	for action, rl := range opts.RateLimits {
		limiters[action] = rl.limiter()
	}

	return &Monitor{
		opts:     opts,
		logger:   log.WithComponent("security_monitor"),
		events:   make([]models.SecurityEvent, 0, 64),
		logins:   make(map[string]*attemptWindow),
		limiters: limiters,
	}
}

// SetSink installs the remote sink. A nil sink disables forwarding.
func (m *Monitor) SetSink(s Sink) {
	m.mu.Lock()
	m.sink = s
	m.mu.Unlock()
}

// RegisterWiper adds w to the CRITICAL response. Wipers run in registration
// order.
func (m *Monitor) RegisterWiper(w Wiper) {
	m.mu.Lock()
	m.wipers = append(m.wipers, w)
	m.mu.Unlock()
}

// SetNavigator installs the login redirect used after a wipe.
func (m *Monitor) SetNavigator(n Navigator) {
	m.mu.Lock()
	m.navigator = n
	m.mu.Unlock()
}

// Record stores event and runs the response its severity requires.
func (m *Monitor) Record(event models.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = m.opts.Now()
	}
	if event.UserAgent == "" {
		event.UserAgent = m.opts.UserAgent
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	if over := len(m.events) - m.opts.MaxEvents; over > 0 {
		m.events = append(m.events[:0:0], m.events[over:]...)
	}
	sink := m.sink
	m.mu.Unlock()

	m.logEvent(event)

	if event.Severity >= models.SeverityHigh && sink != nil {
		m.forward(sink, event)
	}
	if event.Severity >= models.SeverityCritical {
		m.respond(event)
	}
}

func (m *Monitor) logEvent(event models.SecurityEvent) {
	var ev *zerolog.Event
	switch event.Severity {
	case models.SeverityCritical:
		ev = m.logger.Error()
	case models.SeverityHigh:
		ev = m.logger.Warn()
	case models.SeverityMedium:
		ev = m.logger.Info()
	default:
		ev = m.logger.Debug()
	}

	ev.Str("event", event.Type).
		Str("severity", event.Severity.String()).
		Interface("details", event.Details).
		Msg(event.Message)
}

func (m *Monitor) forward(sink Sink, event models.SecurityEvent) {
	m.sinkWG.Add(1)
	go func() {
		defer m.sinkWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.opts.SinkTimeout)
		defer cancel()

		if err := sink.Send(ctx, event); err != nil {
			m.logger.Debug().Err(err).Str("event", event.Type).Msg("security event not delivered to sink")
		}
	}()
}

// respond wipes local state and redirects to login. A CRITICAL event raised
// while a response is already running does not start another one.
func (m *Monitor) respond(event models.SecurityEvent) {
	if !m.responding.CompareAndSwap(false, true) {
		return
	}
	defer m.responding.Store(false)

	m.mu.Lock()
	wipers := append([]Wiper(nil), m.wipers...)
	navigator := m.navigator
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), wipeTimeout)
	defer cancel()

	for i, w := range wipers {
		if err := w.Wipe(ctx); err != nil {
			m.logger.Err(err).Int("wiper", i).Msg("error wiping local state")
		}
	}

	m.logger.Error().Str("event", event.Type).Msg("local state wiped after critical security event")

	if navigator != nil {
		navigator.RedirectToLogin(event.Type)
	}
}

// Flush waits for in-flight sink deliveries.
func (m *Monitor) Flush() {
	m.sinkWG.Wait()
}

// Close flushes pending deliveries and closes the sink if it holds
// resources.
func (m *Monitor) Close() error {
	m.Flush()

	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()

	if c, ok := sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RecordFailedLogin counts a failed login for identifier and reports
// whether the identifier is now locked out. Reaching the limit inside the
// window raises a HIGH brute-force event once.
func (m *Monitor) RecordFailedLogin(identifier string) bool {
	now := m.opts.Now()

	m.mu.Lock()
	w := m.logins[identifier]
	if w == nil || w.expired(now, m.opts.LoginWindow) {
		w = &attemptWindow{first: now}
		m.logins[identifier] = w
	}
	w.count++
	count := w.count
	m.mu.Unlock()

	m.Record(models.SecurityEvent{
		Type:     models.EventFailedLogin,
		Severity: models.SeverityLow,
		Message:  "failed login attempt",
		Details:  map[string]string{"identifier": identifier, "attempts": strconv.Itoa(count)},
	})

	if count < m.opts.MaxFailedLogins {
		return false
	}
	if count == m.opts.MaxFailedLogins {
		m.Record(models.SecurityEvent{
			Type:     models.EventBruteForceSuspected,
			Severity: models.SeverityHigh,
			Message:  "too many failed login attempts",
			Details:  map[string]string{"identifier": identifier, "attempts": strconv.Itoa(count)},
		})
	}
	return true
}

// IsLoginLocked reports whether identifier has exhausted its failed-login
// budget in the current window.
func (m *Monitor) IsLoginLocked(identifier string) bool {
	now := m.opts.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.logins[identifier]
	return w != nil && !w.expired(now, m.opts.LoginWindow) && w.count >= m.opts.MaxFailedLogins
}

// RecordSuccessfulLogin clears the failure count of identifier.
func (m *Monitor) RecordSuccessfulLogin(identifier string) {
	m.mu.Lock()
	delete(m.logins, identifier)
	m.mu.Unlock()
}

// Allow reports whether action may run now under its rate limit. Actions
// without a configured limit are always allowed. A refusal is recorded as a
// LOW event.
func (m *Monitor) Allow(action string) bool {
	m.mu.Lock()
	l, ok := m.limiters[action]
	m.mu.Unlock()

	if !ok || l.AllowN(m.opts.Now(), 1) {
		return true
	}

	m.Record(models.SecurityEvent{
		Type:     models.EventRateLimited,
		Severity: models.SeverityLow,
		Message:  "action rate limited",
		Details:  map[string]string{"action": action},
	})
	return false
}

// Prune drops failed-login and suspicious-input windows that have expired.
// It runs as a periodic maintenance job.
func (m *Monitor) Prune(context.Context) {
	now := m.opts.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, w := range m.logins {
		if w.expired(now, m.opts.LoginWindow) {
			delete(m.logins, id)
		}
	}
	if m.inputHits != nil && m.inputHits.expired(now, m.opts.InputWindow) {
		m.inputHits = nil
	}
}
