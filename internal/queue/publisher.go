package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tour-booking/internal/model"
)

// Publisher sends booking events.  It opens a connection per message.
type Publisher struct {
	url string
}

func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// BookingCreated publishes a persistent BookingCreatedEvent.
func (p *Publisher) BookingCreated(ctx context.Context, b *model.Booking) error {
	body, err := json.Marshal(NewBookingCreatedEvent(b))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	return ch.PublishWithContext(ctx, "", BookingQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
