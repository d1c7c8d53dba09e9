// Package amqpnotify supplements the core with operational alerting
// (SPEC_FULL.md §9): a signalbus.Listener that republishes
// WorkflowRunError and ProtocolRunError signals onto a RabbitMQ exchange,
// so an operator can alert on them without tailing logs. Purely additive —
// the runner emits signals best-effort regardless of whether a listener is
// attached. Grounded on the teacher's ProducerRabbitMQRepository
// (components/consumer/internal/adapters/rabbitmq/producer.rabbitmq.go).
package amqpnotify

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/signalbus"
)

// Notifier owns one RabbitMQ channel and republishes failure signals to a
// single exchange under a routing key derived from the signal kind.
type Notifier struct {
	disposable.Base
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// New dials amqpURL, opens a channel, and declares exchange as a durable
// topic exchange.
func New(amqpURL, exchange string) (*Notifier, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqpnotify: dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqpnotify: open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()

		return nil, fmt.Errorf("amqpnotify: declare exchange: %w", err)
	}

	return &Notifier{conn: conn, channel: channel, exchange: exchange}, nil
}

// Dispose closes the channel and connection.
func (n *Notifier) Dispose() error {
	return n.DisposeOnce(func() error {
		chErr := n.channel.Close()
		connErr := n.conn.Close()

		if chErr != nil {
			return chErr
		}

		return connErr
	})
}

// payload is the wire shape published for every notified signal.
type payload struct {
	Kind       string `json:"kind"`
	ProtocolID string `json:"protocol_id"`
	DrawMetaID string `json:"draw_meta_id,omitempty"`
	Err        string `json:"err,omitempty"`
}

// Listen implements signalbus.Listener, publishing only the two failure
// kinds (SPEC_FULL.md §4.6); every other signal is ignored. Publish errors
// are swallowed — a listener must never propagate failure back into the
// runner's control flow.
func (n *Notifier) Listen(sig signalbus.Signal) {
	if sig.Kind != signalbus.WorkflowRunError && sig.Kind != signalbus.ProtocolRunError {
		return
	}

	if n.IsDisposed() {
		return
	}

	p := payload{Kind: sig.Kind.String(), ProtocolID: sig.ProtocolID}

	if sig.DrawMeta != nil {
		p.DrawMetaID = sig.DrawMeta.ID()
	}

	if sig.Err != nil {
		p.Err = sig.Err.Error()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return
	}

	routingKey := "idrclient." + sig.Kind.String()

	_ = n.channel.Publish(n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
