package events

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// AMQPConfig configures the broker publisher.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events as persistent JSON messages to a topic
// exchange. When RoutingKey is empty the event type is the routing key.
type AMQPPublisher struct {
	ch         channel
	conn       *amqp.Connection
	exchange   string
	routingKey string
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, eris.New("events: amqp url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "events: dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "events: open channel")
	}
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, eris.Wrapf(err, "events: declare exchange %s", cfg.Exchange)
		}
	}

	zap.L().Info("events: connected to broker",
		zap.String("exchange", cfg.Exchange),
		zap.String("routing_key", cfg.RoutingKey),
	)

	p := newAMQPPublisher(ch, cfg.Exchange, cfg.RoutingKey)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, exchange, routingKey string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, routingKey: routingKey}
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := evt.Encode()
	if err != nil {
		return eris.Wrap(err, "events: encode")
	}

	key := p.routingKey
	if key == "" {
		key = evt.Type
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.At,
		Type:         evt.Type,
		Body:         body,
		Headers: amqp.Table{
			"event_type": evt.Type,
			"run_id":     evt.RunID,
		},
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return eris.Wrapf(err, "events: publish %s", evt.Type)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return eris.Wrap(err, "events: close")
}
