package monitor

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/MKhiriev/clinic-keeper/internal/config"
)

// RateLimit is the token bucket of one action.
type RateLimit struct {
	// Every is the interval at which one token is added.
	Every time.Duration
	// Burst is the bucket size.
	Burst int
}

func (r RateLimit) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(r.Every), r.Burst)
}

// Actions with a default rate limit.
const (
	ActionLogin             = "login"
	ActionRefresh           = "token_refresh"
	ActionCreateReservation = "create_reservation"
	ActionListReservations  = "list_reservations"
)

// Options tune a [Monitor]. Zero fields take the defaults below.
type Options struct {
	MaxEvents         int
	MaxFailedLogins   int
	LoginWindow       time.Duration
	InputHitThreshold int
	InputWindow       time.Duration
	SinkTimeout       time.Duration
	RateLimits        map[string]RateLimit
	UserAgent         string

	Now func() time.Time
}

const (
	DefaultMaxEvents         = 1000
	DefaultMaxFailedLogins   = 5
	DefaultLoginWindow       = 15 * time.Minute
	DefaultInputHitThreshold = 3
	DefaultInputWindow       = 15 * time.Minute
	DefaultSinkTimeout       = 5 * time.Second
)

// DefaultRateLimits returns the limits applied to client actions.
func DefaultRateLimits() map[string]RateLimit {
	return map[string]RateLimit{
		ActionLogin:             {Every: 12 * time.Second, Burst: 5},
		ActionRefresh:           {Every: 10 * time.Second, Burst: 3},
		ActionCreateReservation: {Every: 2 * time.Second, Burst: 10},
		ActionListReservations:  {Every: time.Second, Burst: 20},
	}
}

// OptionsFromConfig maps client configuration onto monitor options.
func OptionsFromConfig(cfg *config.ClientConfig) Options {
	return Options{
		LoginWindow: cfg.Security.BlockDuration,
		SinkTimeout: cfg.Adapter.RequestTimeout,
		UserAgent:   cfg.App.UserAgent,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxEvents <= 0 {
		o.MaxEvents = DefaultMaxEvents
	}
	if o.MaxFailedLogins <= 0 {
		o.MaxFailedLogins = DefaultMaxFailedLogins
	}
	if o.LoginWindow <= 0 {
		o.LoginWindow = DefaultLoginWindow
	}
	if o.InputHitThreshold <= 0 {
		o.InputHitThreshold = DefaultInputHitThreshold
	}
	if o.InputWindow <= 0 {
		o.InputWindow = DefaultInputWindow
	}
	if o.SinkTimeout <= 0 {
		o.SinkTimeout = DefaultSinkTimeout
	}
	if o.RateLimits == nil {
		o.RateLimits = DefaultRateLimits()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
