package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/academy/feebilling/internal/domain/shared"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPChannel is the subset of *amqp.Channel the forwarder uses
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPConnection holds a RabbitMQ connection and its publishing channel
type AMQPConnection struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

// DialAMQP connects to RabbitMQ and opens a channel
func DialAMQP(url string) (*AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &AMQPConnection{Connection: conn, Channel: ch}, nil
}

// Close closes the channel and the connection
func (c *AMQPConnection) Close() error {
	var errs []error
	if c.Channel != nil {
		errs = append(errs, c.Channel.Close())
	}
	if c.Connection != nil {
		errs = append(errs, c.Connection.Close())
	}
	return errors.Join(errs...)
}

// AMQPEventForwarder forwards every billing event to a topic exchange.
// The routing key is "<aggregate type>.<event type>", e.g. "StudentLedger.PaymentApplied".
type AMQPEventForwarder struct {
	channel    AMQPChannel
	exchange   string
	serializer *EventSerializer
	logger     *zap.Logger

	mu       sync.Mutex
	declared bool
}

// NewAMQPEventForwarder creates a forwarder publishing to exchange
func NewAMQPEventForwarder(channel AMQPChannel, exchange string, serializer *EventSerializer, logger *zap.Logger) *AMQPEventForwarder {
	return &AMQPEventForwarder{
		channel:    channel,
		exchange:   exchange,
		serializer: serializer,
		logger:     logger,
	}
}

// EventTypes subscribes the forwarder to all events
func (f *AMQPEventForwarder) EventTypes() []string {
	return nil
}

// Handle publishes the event as a persistent JSON message
func (f *AMQPEventForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := f.ensureExchange(); err != nil {
		return err
	}

	body, err := f.serializer.Serialize(event)
	if err != nil {
		return err
	}

	err = f.channel.PublishWithContext(ctx, f.exchange, RoutingKey(event), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.EventID().String(),
		Type:         event.EventType(),
		Timestamp:    event.OccurredAt(),
		Headers: amqp.Table{
			"tenant_id":    event.TenantID().String(),
			"aggregate_id": event.AggregateID().String(),
		},
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType(), err)
	}

	f.logger.Debug("Event forwarded to AMQP",
		zap.String("exchange", f.exchange),
		zap.String("routing_key", RoutingKey(event)),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// ensureExchange declares the durable topic exchange once it succeeds
func (f *AMQPEventForwarder) ensureExchange() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declared {
		return nil
	}
	if err := f.channel.ExchangeDeclare(f.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", f.exchange, err)
	}
	f.declared = true
	return nil
}

// RoutingKey returns the AMQP routing key for an event
func RoutingKey(event shared.DomainEvent) string {
	return event.AggregateType() + "." + event.EventType()
}

var (
	_ shared.EventHandler = (*AMQPEventForwarder)(nil)
	_ AMQPChannel         = (*amqp.Channel)(nil)
)
