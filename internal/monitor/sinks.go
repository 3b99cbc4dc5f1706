package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/models"
)

// ErrUnknownSink is returned for an unsupported Security.EventSink value.
var ErrUnknownSink = errors.New("unknown security event sink")

// EventSender is the part of the server adapter the HTTP sink needs.
type EventSender interface {
	SendSecurityEvent(ctx context.Context, event models.SecurityEvent) error
}

// NewServerSink forwards events to the dashboard API.
func NewServerSink(sender EventSender) Sink {
	return SinkFunc(sender.SendSecurityEvent)
}

// NewSink builds the sink selected by cfg. It returns a nil sink for
// [config.SinkNone].
func NewSink(cfg config.ClientSecurity, sender EventSender, log *logger.Logger) (Sink, error) {
	switch cfg.EventSink {
	case config.SinkHTTP, "":
		if sender == nil {
			return nil, nil
		}
		return NewServerSink(sender), nil
	case config.SinkAMQP:
		sink, err := NewAMQPSink(cfg.AMQPURL, cfg.AMQPQueue, log)
		if err != nil {
			return nil, fmt.Errorf("error creating amqp sink: %w", err)
		}
		return sink, nil
	case config.SinkNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.EventSink)
	}
}
