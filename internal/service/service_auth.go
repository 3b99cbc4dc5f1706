package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/clinic-keeper/internal/adapter"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/monitor"
	"github.com/MKhiriev/clinic-keeper/models"
)

// AuthService logs the doctor in and out.
type AuthService struct {
	api    LoginAPI
	tokens *TokenManager
	guard  Guard
	logger *logger.Logger
}

func NewAuthService(api LoginAPI, tokens *TokenManager, guard Guard, log *logger.Logger) *AuthService {
	return &AuthService{
		api:    api,
		tokens: tokens,
		guard:  guard,
		logger: log.WithComponent("auth_service"),
	}
}

// Login exchanges creds for a token pair and stores it. It returns the id of
// the logged-in user.
func (a *AuthService) Login(ctx context.Context, creds models.Credentials) (string, error) {
	if creds.Username == "" || creds.Password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrInvalidDataProvided)
	}
	if !a.guard.CheckInput("username", creds.Username) {
		return "", fmt.Errorf("%w: username", ErrSuspiciousInput)
	}
	if a.guard.IsLoginLocked(creds.Username) {
		return "", ErrLoginLocked
	}
	if !a.guard.Allow(monitor.ActionLogin) {
		return "", ErrRateLimited
	}

	pair, err := a.api.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, adapter.ErrUnauthorized) || errors.Is(err, adapter.ErrBadRequest) {
			if a.guard.RecordFailedLogin(creds.Username) {
				return "", fmt.Errorf("%w: %w", ErrLoginLocked, ErrInvalidCredentials)
			}
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %w", ErrLoginOnServer, err)
	}

	a.guard.RecordSuccessfulLogin(creds.Username)

	if !a.tokens.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken, pair.UserID, pair.ExpiresIn) {
		return "", ErrTokenPersist
	}

	a.logger.Info().Str("user_id", pair.UserID).Msg("logged in")
	return pair.UserID, nil
}

// Logout clears the tokens and the current session.
func (a *AuthService) Logout(ctx context.Context) {
	a.tokens.ClearTokens(ctx)
	a.logger.Info().Msg("logged out")
}
