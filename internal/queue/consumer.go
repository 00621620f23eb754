package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// StartBookingConsumer consumes BookingQueue until ctx is cancelled and
// writes one log line per booking.  Broker failures are retried with
// exponential backoff capped at 30s.
func StartBookingConsumer(ctx context.Context, url string, log zerolog.Logger) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("booking consumer: dial failed")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = consume(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("booking consumer: reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consume(ctx context.Context, conn *amqp.Connection, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("booking consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, BookingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, log); err != nil {
			log.Error().Err(err).Msg("booking consumer: rejecting message")
			_ = d.Nack(false, false) // no requeue; a bad payload would loop forever
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, log zerolog.Logger) error {
	var ev BookingCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == "" || ev.TourID == "" {
		return errors.New("event without booking or tour id")
	}
	log.Info().
		Str("booking", ev.BookingID).
		Str("tour", ev.TourID).
		Str("user", ev.UserID).
		Float64("price", ev.Price).
		Bool("paid", ev.Paid).
		Time("created_at", ev.CreatedAt).
		Msg("booking created")
	return nil
}
