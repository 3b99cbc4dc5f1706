package service

import (
	"github.com/MKhiriev/clinic-keeper/internal/adapter"
	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/utils"
)

// Services groups the client services around one encrypted store.
type Services struct {
	Sessions     *SessionRegistry
	Tokens       *TokenManager
	Cache        *ReservationCache
	Auth         *AuthService
	Reservations *ReservationService
}

// NewServices wires the services. The server adapter is both the refresher
// of the token manager and the API of the other services; the token manager
// is installed as its token source so authenticated calls carry the bearer
// token.
func NewServices(kv SecureKV, server *adapter.HTTPServerAdapter, guard Guard, recorder EventRecorder, cfg *config.ClientConfig, log *logger.Logger) *Services {
	sessions := NewSessionRegistry(kv, StaticEnvironment(cfg.App.UserAgent), utils.NewUUIDGenerator(), RegistryOptions{
		Timeout:     cfg.Security.SessionTimeout,
		MaxSessions: cfg.Security.MaxSessions,
	}, log)

	tokens := NewTokenManager(kv, sessions, server, recorder, TokenOptions{
		RefreshThreshold: cfg.Security.RefreshThreshold,
		RefreshTimeout:   cfg.Adapter.RequestTimeout,
	}, log)
	server.SetTokenSource(tokens)

	cache := NewReservationCache(kv, tokens.CurrentUserID, log)

	return &Services{
		Sessions:     sessions,
		Tokens:       tokens,
		Cache:        cache,
		Auth:         NewAuthService(server, tokens, guard, log),
		Reservations: NewReservationService(server, cache, guard, log),
	}
}
