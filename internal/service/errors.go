package service

import "errors"

var (
	ErrInvalidDataProvided = errors.New("invalid data provided")

	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrFingerprintMismatch = errors.New("session fingerprint mismatch")

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenIsExpired   = errors.New("token is expired")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrTokenPersist     = errors.New("tokens could not be persisted")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginLocked        = errors.New("too many failed login attempts")
	ErrLoginOnServer      = errors.New("error logging in on server")

	ErrRateLimited     = errors.New("too many requests, try again later")
	ErrSuspiciousInput = errors.New("input rejected by security screening")

	ErrReservationsOnServer = errors.New("error fetching reservations from server")
	ErrCreateOnServer       = errors.New("error creating reservation on server")
	ErrCacheUnavailable     = errors.New("reservation cache unavailable")
)
