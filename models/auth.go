// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// TokenData is the access/refresh credential bundle persisted by the token
// manager. Exactly one TokenData is live per storage partition.
type TokenData struct {
	// AccessToken is the bearer token attached to authenticated API calls.
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged for a new pair at the refresh endpoint.
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is the moment the access token stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`

	// IssuedAt is the moment the pair was saved on this client.
	IssuedAt time.Time `json:"issued_at"`

	// SessionID links the token to its [SessionInfo] in the session registry.
	SessionID string `json:"session_id"`

	// UserID identifies the owner of the token.
	UserID string `json:"user_id"`
}

// Expired reports whether the access token is past its expiry at now.
func (t TokenData) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the token expires in less than d from now.
func (t TokenData) ExpiresWithin(now time.Time, d time.Duration) bool {
	return t.ExpiresAt.Sub(now) < d
}

// TokenPair is the credential pair returned by the login and refresh
// endpoints.
type TokenPair struct {
	// AccessToken is the new bearer token.
	AccessToken string `json:"access"`

	// RefreshToken is the new refresh token. The previous one must not be
	// reused after a successful refresh.
	RefreshToken string `json:"refresh"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// UserID is returned by the login endpoint. It may be empty, in which
	// case the caller extracts it from the access token's subject claim.
	UserID string `json:"user_id,omitempty"`
}

// Credentials are the doctor's login credentials sent to the login endpoint.
// Password is never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
