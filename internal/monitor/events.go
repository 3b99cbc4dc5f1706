package monitor

import (
	"time"

	"github.com/MKhiriev/clinic-keeper/models"
)

// Filter selects events from the log. Zero fields match everything.
type Filter struct {
	Type        string
	MinSeverity models.Severity
	Since       time.Time
	Limit       int
}

func (f Filter) match(e models.SecurityEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if e.Severity < f.MinSeverity {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Stats summarises the event log.
type Stats struct {
	Total      int
	BySeverity map[models.Severity]int
	ByType     map[string]int
	LockedOut  int
	Last       *models.SecurityEvent
}

// Events returns the logged events that match f, oldest first. With a
// Limit only the newest matches are returned.
func (m *Monitor) Events(f Filter) []models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SecurityEvent, 0, len(m.events))
	for _, e := range m.events {
		if f.match(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Stats reports counters over the current event log.
func (m *Monitor) Stats() Stats {
	now := m.opts.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Total:      len(m.events),
		BySeverity: make(map[models.Severity]int),
		ByType:     make(map[string]int),
	}
	for _, e := range m.events {
		s.BySeverity[e.Severity]++
		s.ByType[e.Type]++
	}
	if n := len(m.events); n > 0 {
		last := m.events[n-1]
		s.Last = &last
	}
	for _, w := range m.logins {
		if !w.expired(now, m.opts.LoginWindow) && w.count >= m.opts.MaxFailedLogins {
			s.LockedOut++
		}
	}
	return s
}
