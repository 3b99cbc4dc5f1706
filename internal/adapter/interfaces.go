// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter talks to the clinic REST API.
//
// [ServerAdapter] decouples the service layer from the protocol. The HTTP
// implementation ([NewHTTPServerAdapter]) attaches the bearer token supplied
// by a [TokenSource] to every authenticated request and maps HTTP status
// codes onto the sentinel errors in errors.go, so callers can use
// [errors.Is] (e.g. [ErrUnauthorized] for 401).
package adapter

import (
	"context"

	"github.com/MKhiriev/clinic-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// ServerAdapter is the client's view of the clinic API.
type ServerAdapter interface {
	// Login exchanges credentials for a token pair. When the response omits
	// the user id it is read from the access token's subject.
	Login(ctx context.Context, creds models.Credentials) (models.TokenPair, error)

	// RefreshTokens exchanges a refresh token for a new pair. The refresh
	// token travels as the bearer credential of the request.
	RefreshTokens(ctx context.Context, refreshToken string) (models.TokenPair, error)

	// ListReservations fetches the reservations visible to the current user.
	ListReservations(ctx context.Context) ([]models.Reservation, error)

	// CreateReservation submits a manual reservation and returns the record
	// the server stored, which may lack the patient fields.
	CreateReservation(ctx context.Context, req models.ManualReservationRequest) (models.Reservation, error)

	// SendSecurityEvent forwards one event to the security log endpoint.
	SendSecurityEvent(ctx context.Context, event models.SecurityEvent) error
}

// TokenSource supplies the access token for authenticated requests. ok is
// false when no usable token exists; the request is then sent without an
// Authorization header and the server decides.
type TokenSource interface {
	AccessToken(ctx context.Context) (token string, ok bool)
}

// TokenSourceFunc adapts a function to [TokenSource].
type TokenSourceFunc func(ctx context.Context) (string, bool)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, bool) {
	return f(ctx)
}
