package monitor

import (
	"context"

	"github.com/MKhiriev/clinic-keeper/models"
)

// Sink forwards HIGH and CRITICAL events to a remote collector. Delivery is
// fire-and-forget: errors are logged and dropped.
type Sink interface {
	Send(ctx context.Context, event models.SecurityEvent) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, event models.SecurityEvent) error

func (f SinkFunc) Send(ctx context.Context, event models.SecurityEvent) error {
	return f(ctx, event)
}

// Wiper erases one category of local state during a CRITICAL response.
type Wiper interface {
	Wipe(ctx context.Context) error
}

// WiperFunc adapts a function to [Wiper].
type WiperFunc func(ctx context.Context) error

func (f WiperFunc) Wipe(ctx context.Context) error {
	return f(ctx)
}

// Navigator moves the user to the login surface after a CRITICAL response.
type Navigator interface {
	RedirectToLogin(reason string)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(reason string)

func (f NavigatorFunc) RedirectToLogin(reason string) {
	f(reason)
}
