package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_cart/order-service/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// EventSource is the outbox side of the order repository.
type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays outbox rows to Kafka. Delivery is at least once:
// a row is marked only after the broker acknowledged it.
type OutboxPoller struct {
	repo      EventSource
	writer    MessageWriter
	interval  time.Duration
	batchSize int
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order id, same partition
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo EventSource, writer MessageWriter, interval time.Duration, batchSize int) *OutboxPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		repo:      repo,
		writer:    writer,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Msg("outbox poller started")
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			log.Info().Msg("outbox poller stopped")
			return
		}
	}
}

// processUnpublishedEvents publishes one batch in id order and returns how
// many events were marked. It stops at the first failure so later events
// for the same order are not published ahead of earlier ones.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			log.Error().Err(err).Int64("event_id", event.ID).Str("event_type", event.EventType).Msg("failed to publish outbox event")
			return published
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event as processed")
			return published
		}
		published++
	}

	if published > 0 {
		log.Debug().Int("count", published).Msg("outbox events published")
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
