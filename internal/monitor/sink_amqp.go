package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/models"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes events as persistent JSON messages to a durable queue
// on the default exchange.
type AMQPSink struct {
	queue  string
	logger *logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   amqpPublisher
}

// NewAMQPSink dials url and declares queue.
func NewAMQPSink(url, queue string, log *logger.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error dialing amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error opening amqp channel: %w", err)
	}

	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("error declaring amqp queue %s: %w", queue, err)
	}

	sink := newAMQPSink(ch, queue, log)
	sink.conn = conn
	return sink, nil
}

func newAMQPSink(ch amqpPublisher, queue string, log *logger.Logger) *AMQPSink {
	return &AMQPSink{
		queue:  queue,
		logger: log.WithComponent("amqp_sink"),
		ch:     ch,
	}
}

// Send implements [Sink].
func (s *AMQPSink) Send(ctx context.Context, event models.SecurityEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling security event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp.UTC(),
		Type:         event.Type,
		Body:         body,
	}

	// channels are not safe for concurrent publishing
	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return fmt.Errorf("error publishing security event: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.ch != nil {
		err = s.ch.Close()
	}
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	s.logger.Debug().Err(err).Msg("amqp sink closed")
	return err
}
