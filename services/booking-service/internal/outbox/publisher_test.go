package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvstudio/salonbook/libs/kafkax"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func outboxRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}).
		AddRow(int64(7), "evt-7", "reservation", "res-1", EventReservationScheduled, []byte(`{"reservation_id":"res-1"}`), "", "", time.Now())
}

func TestPublishBatchWritesAndMarks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).WillReturnRows(outboxRows())
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{7}).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	w := &recordingWriter{}
	p := NewPublisher(mock, w, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, PublisherConfig{})
	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, EventReservationScheduled, w.msgs[0].Topic)
	assert.Equal(t, "evt-7", kafkax.HeaderValue(w.msgs[0].Headers, kafkax.HeaderEventID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchKeepsRowsWhenKafkaFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).WillReturnRows(outboxRows())
	mock.ExpectRollback()

	p := NewPublisher(mock, &recordingWriter{err: errors.New("broker down")}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, PublisherConfig{})
	_, err = p.PublishBatch(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent("gift_card", "gc-1", EventGiftCardIssued, map[string]any{"code": "JV-ABC123-XYZ9"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"JV-ABC123-XYZ9"}`, string(evt.Payload))
}
