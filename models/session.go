// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// SessionInfo is per-login metadata used to decide whether a token may still
// be used. It is keyed by session id inside the session registry.
type SessionInfo struct {
	// SessionID duplicates the registry key so listings are self-describing.
	SessionID string `json:"session_id"`

	// UserID is the owner of the session.
	UserID string `json:"user_id"`

	// UserAgentFingerprint is the user-agent string recorded when the
	// session was created. Any later mismatch invalidates the session.
	UserAgentFingerprint string `json:"user_agent"`

	// IPAddress is a placeholder; the client cannot observe its public
	// address.
	IPAddress string `json:"ip_address"`

	// LastActivity is updated on every successful access token read.
	LastActivity time.Time `json:"last_activity"`

	// LoginTime is when the session was created. Eviction order is by
	// LoginTime ascending.
	LoginTime time.Time `json:"login_time"`
}

// TimedOut reports whether the session has been idle longer than timeout.
func (s SessionInfo) TimedOut(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}
