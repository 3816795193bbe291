// Package notify announces finished runs to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"socialfeed/internal/model"
)

// Notifier publishes a run's descriptor.
type Notifier interface {
	Publish(ctx context.Context, d *model.Descriptor) error
}

// Nop drops every descriptor.
type Nop struct{}

func (Nop) Publish(context.Context, *model.Descriptor) error { return nil }

// AMQPNotifier publishes descriptors as persistent JSON messages to a
// durable queue. One connection per publish; runs are rare.
type AMQPNotifier struct {
	url   string
	queue string
	now   func() time.Time
}

func NewAMQPNotifier(url, queue string) *AMQPNotifier {
	return &AMQPNotifier{url: url, queue: queue, now: time.Now}
}

// Message builds the publishing for d.
func (n *AMQPNotifier) Message(d *model.Descriptor) (amqp.Publishing, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     n.now().UTC(),
		Type:          model.ApplicationName + ".result",
		AppId:         model.ApplicationName,
		CorrelationId: d.QueryHash,
		Body:          body,
	}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, d *model.Descriptor) error {
	msg, err := n.Message(d)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare %s: %w", n.queue, err)
	}
	if err := ch.PublishWithContext(ctx, "", n.queue, false, false, msg); err != nil {
		return fmt.Errorf("amqp publish %s: %w", n.queue, err)
	}
	return nil
}
