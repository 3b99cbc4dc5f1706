package monitor

import (
	"regexp"
	"strconv"

	"github.com/MKhiriev/clinic-keeper/models"
)

type inputPattern struct {
	name string
	re   *regexp.Regexp
}

var suspiciousInput = []inputPattern{
	{"script_tag", regexp.MustCompile(`(?i)<\s*/?\s*script\b`)},
	{"embedded_frame", regexp.MustCompile(`(?i)<\s*(iframe|object|embed|frame)\b`)},
	{"event_handler", regexp.MustCompile(`(?i)\bon(load|error|click|dblclick|mouse\w*|focus|blur|key\w*|submit|change|input)\s*=`)},
	{"javascript_uri", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"sql_keyword", regexp.MustCompile(`(?i)\b(union\s+(all\s+)?select|drop\s+table|insert\s+into|delete\s+from|update\s+\w+\s+set)\b`)},
	{"sql_tautology", regexp.MustCompile(`(?i)['"]\s*(or|and)\s+['"]?\w+['"]?\s*=\s*['"]?\w+`)},
	{"sql_comment", regexp.MustCompile(`;\s*--`)},
}

// matchSuspicious returns the name of the first pattern value matches.
func matchSuspicious(value string) (string, bool) {
	for _, p := range suspiciousInput {
		if p.re.MatchString(value) {
			return p.name, true
		}
	}
	return "", false
}

// CheckInput reports whether value of field is free of script, markup and
// SQL injection patterns. A hit is recorded as MEDIUM; repeated hits inside
// the input window escalate to a CRITICAL injection event, which wipes
// local state.
func (m *Monitor) CheckInput(field, value string) bool {
	pattern, hit := matchSuspicious(value)
	if !hit {
		return true
	}

	now := m.opts.Now()

	m.mu.Lock()
	if m.inputHits == nil || m.inputHits.expired(now, m.opts.InputWindow) {
		m.inputHits = &attemptWindow{first: now}
	}
	m.inputHits.count++
	count := m.inputHits.count
	escalate := count >= m.opts.InputHitThreshold
	if escalate {
		m.inputHits = nil
	}
	m.mu.Unlock()

	details := map[string]string{
		"field":   field,
		"pattern": pattern,
		"hits":    strconv.Itoa(count),
	}

	m.Record(models.SecurityEvent{
		Type:     models.EventSuspiciousInput,
		Severity: models.SeverityMedium,
		Message:  "suspicious input rejected",
		Details:  details,
	})

	if escalate {
		m.Record(models.SecurityEvent{
			Type:     models.EventInjectionAttack,
			Severity: models.SeverityCritical,
			Message:  "repeated injection attempts",
			Details:  details,
		})
	}
	return false
}
