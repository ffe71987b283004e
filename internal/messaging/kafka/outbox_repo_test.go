package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingEvent() OutboxEvent {
	return OutboxEvent{
		ID:            "e1a2b3c4-0000-0000-0000-000000000001",
		RequestID:     "req-1",
		AggregateType: "shift_record",
		AggregateID:   "d1a2b3c4-0000-0000-0000-000000000001",
		EventType:     "shift.clocked_in",
		Topic:         "shift-lifecycle",
		Payload:       []byte(`{"event_type":"shift.clocked_in"}`),
		Status:        OutboxStatusPending,
	}
}

func newTestRepo(t *testing.T) (OutboxRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOutboxRepository(db), mock
}

func TestOutboxRepository_Create(t *testing.T) {
	repo, mock := newTestRepo(t)
	event := pendingEvent()

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(
			event.ID, event.RequestID, event.AggregateType,
			event.AggregateID, event.EventType, event.Topic, event.Payload, event.Status,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_Create_RejectsUndeliverable(t *testing.T) {
	repo, mock := newTestRepo(t)

	for name, mutate := range map[string]func(*OutboxEvent){
		"missing id":     func(e *OutboxEvent) { e.ID = "" },
		"missing topic":  func(e *OutboxEvent) { e.Topic = "" },
		"empty payload":  func(e *OutboxEvent) { e.Payload = nil },
		"unknown status": func(e *OutboxEvent) { e.Status = "queued" },
	} {
		event := pendingEvent()
		mutate(&event)
		assert.Error(t, repo.Create(context.Background(), event), name)
	}

	// Nothing undeliverable ever reaches the store.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ListPending(t *testing.T) {
	repo, mock := newTestRepo(t)
	event := pendingEvent()
	due := time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "request_id", "aggregate_type", "aggregate_id", "event_type",
		"topic", "payload", "status", "retry_count", "coalesce",
	}).AddRow(
		event.ID, event.RequestID, event.AggregateType, event.AggregateID,
		event.EventType, event.Topic, event.Payload, event.Status, 2, due,
	)

	mock.ExpectQuery("SELECT").
		WithArgs(OutboxStatusPending, OutboxStatusFailed, 50).
		WillReturnRows(rows)

	events, err := repo.ListPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, event.Topic, got.Topic)
	assert.Equal(t, event.Payload, got.Payload)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, due, got.NextRetryAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo, mock := newTestRepo(t)
	id := pendingEvent().ID

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(id, OutboxStatusSent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSent(context.Background(), id))

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(id, OutboxStatusFailed, "broker unreachable").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkFailed(context.Background(), id, "broker unreachable"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_WithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewOutboxRepository(db)
	event := pendingEvent()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(
			event.ID, event.RequestID, event.AggregateType,
			event.AggregateID, event.EventType, event.Topic, event.Payload, event.Status,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.WithTx(tx).Create(context.Background(), event))
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}
