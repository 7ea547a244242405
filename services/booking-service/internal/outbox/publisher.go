package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/jvstudio/salonbook/libs/db"
	"github.com/jvstudio/salonbook/libs/kafkax"
	otelx "github.com/jvstudio/salonbook/libs/otel"
	"github.com/jvstudio/salonbook/services/booking-service/internal/metrics"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays committed outbox rows to Kafka. Delivery is at least once:
// a crash between the write and MarkPublished republishes the batch.
type Publisher struct {
	db        db.TxBeginner
	writer    MessageWriter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(pool db.TxBeginner, writer MessageWriter, logger *slog.Logger, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        pool,
		writer:    writer,
		logger:    logger,
		metrics:   m,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

// PublishBatch sends one batch and returns how many events were published.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	var published int
	err := db.InTx(ctx, p.db, func(tx pgx.Tx) error {
		records, err := FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msg := kafkax.EventMessage(r.EventID, r.EventType, r.AggregateID, r.Payload)
			kafkax.InjectTraceHeaders(otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate), &msg)
			msgs = append(msgs, msg)
			ids = append(ids, r.ID)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		if err := MarkPublished(ctx, tx, ids); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.metrics.AddOutboxPublished(published)
	return published, nil
}
