package service

import (
	"context"

	"github.com/MKhiriev/clinic-keeper/models"
)

// SecureKV is the part of the encrypted store the services persist through.
// [store.SecureStore] implements it.
type SecureKV interface {
	TrySet(ctx context.Context, key string, value any) error
	TryGet(ctx context.Context, key string, target any) error
	TryGetFresh(ctx context.Context, key string, target any) error
	Remove(ctx context.Context, key string) bool
	Invalidate(key string)
}

// Environment describes the client the sessions are bound to.
type Environment interface {
	// UserAgent is the fingerprint recorded with every session.
	UserAgent() string
}

// StaticEnvironment is an [Environment] with a fixed user agent.
type StaticEnvironment string

func (e StaticEnvironment) UserAgent() string {
	return string(e)
}

// TokenRefresher exchanges a refresh token for a new pair.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// ReservationAPI is the reservation part of the clinic API.
type ReservationAPI interface {
	ListReservations(ctx context.Context) ([]models.Reservation, error)
	CreateReservation(ctx context.Context, req models.ManualReservationRequest) (models.Reservation, error)
}

// LoginAPI is the login part of the clinic API.
type LoginAPI interface {
	Login(ctx context.Context, creds models.Credentials) (models.TokenPair, error)
}

// EventRecorder receives security events.
type EventRecorder interface {
	Record(event models.SecurityEvent)
}

// Guard is the security monitor as seen by the services: rate limits,
// input screening and failed-login accounting.
type Guard interface {
	Allow(action string) bool
	CheckInput(field, value string) bool
	IsLoginLocked(identifier string) bool
	RecordFailedLogin(identifier string) bool
	RecordSuccessfulLogin(identifier string)
}
