// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity grades a security event. Higher severities trigger stronger
// responses in the monitor.
type Severity int

const (
	// SeverityLow events are recorded only.
	SeverityLow Severity = iota + 1
	// SeverityMedium events are recorded only.
	SeverityMedium
	// SeverityHigh events are recorded and forwarded to the remote sink.
	SeverityHigh
	// SeverityCritical events wipe all local state and force a re-login.
	SeverityCritical
)

// String implements [fmt.Stringer].
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler] so events serialise with
// readable severities.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity is the inverse of [Severity.String].
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// Event types emitted by the client core.
const (
	EventCryptoFailure          = "crypto_failure"
	EventStorageFailure         = "storage_failure"
	EventCorruptedRecord        = "corrupted_record"
	EventSessionExpired         = "session_expired"
	EventSessionHijackSuspected = "session_hijack_suspected"
	EventTokenRefreshFailed     = "token_refresh_failed"
	EventFailedLogin            = "failed_login"
	EventBruteForceSuspected    = "brute_force_suspected"
	EventSuspiciousInput        = "suspicious_input"
	EventInjectionAttack        = "injection_attack"
	EventRateLimited            = "rate_limited"
)

// SecurityEvent is a single entry of the security event log.
type SecurityEvent struct {
	Type      string            `json:"type"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
