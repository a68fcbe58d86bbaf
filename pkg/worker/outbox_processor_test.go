package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository/memory"
	"github.com/medbook/booking-api/internal/service/event"
	membroker "github.com/medbook/booking-api/pkg/messaging/memory"
	"github.com/medbook/booking-api/pkg/metrics"
)

type failingBroker struct {
	calls int
}

func (b *failingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.calls++
	return stderrors.New("broker unavailable")
}

func (b *failingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, stderrors.New("not supported")
}

func (b *failingBroker) Close() error { return nil }

// cancellingBroker accepts the message and then cancels the relay's context,
// the way a shutdown signal landing mid-publish would.
type cancellingBroker struct {
	cancel context.CancelFunc
	calls  int
}

func (b *cancellingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.calls++
	b.cancel()
	return nil
}

func (b *cancellingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, stderrors.New("not supported")
}

func (b *cancellingBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 3, ClaimLease: time.Minute}
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	store := memory.NewStore()
	_, err := NewOutboxProcessor(store.Outbox(), membroker.NewBroker(), OutboxProcessorConfig{}, zerolog.Nop(), metrics.NewNop())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.RetryAttempts = 0
	_, err = NewOutboxProcessor(store.Outbox(), membroker.NewBroker(), cfg, zerolog.Nop(), metrics.NewNop())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.ClaimLease = 0
	_, err = NewOutboxProcessor(store.Outbox(), membroker.NewBroker(), cfg, zerolog.Nop(), metrics.NewNop())
	assert.Error(t, err)
}

func TestProcessBatchRelaysToSubscribers(t *testing.T) {
	store := memory.NewStore()
	broker := membroker.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := broker.Subscribe(ctx, model.EventAppointmentCancelled)
	require.NoError(t, err)

	want := model.AppointmentCancelledEvent{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		StartAt:       time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
		Reason:        "absent",
	}
	require.NoError(t, event.NewEventService(store.Outbox()).Publish(ctx, model.EventAppointmentCancelled, want))

	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), zerolog.Nop(), metrics.NewNop())
	require.NoError(t, err)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case raw := <-sub:
		var got model.AppointmentCancelledEvent
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("event was not relayed")
	}

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "processed events are not relayed twice")
}

func TestProcessBatchReclaimsAbandonedClaims(t *testing.T) {
	store := memory.NewStore()
	broker := membroker.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := broker.Subscribe(ctx, model.EventAppointmentCancelled)
	require.NoError(t, err)
	require.NoError(t, event.NewEventService(store.Outbox()).Publish(ctx, model.EventAppointmentCancelled, map[string]string{"k": "v"}))

	// A relay claims the row and dies before publishing.
	start := time.Now()
	store.SetClock(func() time.Time { return start })
	claimed, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), zerolog.Nop(), metrics.NewNop())
	require.NoError(t, err)

	store.SetClock(func() time.Time { return start.Add(30 * time.Second) })
	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "claim is still leased")
	assert.Equal(t, model.OutboxStatusProcessing, store.OutboxEvents()[0].Status)

	store.SetClock(func() time.Time { return start.Add(2 * time.Minute) })
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, store.OutboxEvents()[0].Status)

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("reclaimed event was not relayed")
	}
}

func TestProcessBatchRecordsOutcomeAfterCancel(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := &cancellingBroker{cancel: cancel}

	es := event.NewEventService(store.Outbox())
	require.NoError(t, es.Publish(ctx, "a", 1))
	require.NoError(t, es.Publish(ctx, "b", 2))

	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), zerolog.Nop(), metrics.NewNop())
	require.NoError(t, err)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, broker.calls, "relay stops once cancelled")

	events := store.OutboxEvents()
	require.Len(t, events, 2)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.Equal(t, model.OutboxStatusProcessing, events[1].Status, "left for lease expiry")
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	store := memory.NewStore()
	broker := &failingBroker{}
	ctx := context.Background()
	require.NoError(t, event.NewEventService(store.Outbox()).Publish(ctx, model.EventAppointmentCancelled, map[string]string{"k": "v"}))

	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), zerolog.Nop(), metrics.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		n, err := p.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		events := store.OutboxEvents()
		assert.Equal(t, model.OutboxStatusPending, events[0].Status)
		assert.Equal(t, i+1, events[0].RetryCount)
		require.NotNil(t, events[0].ErrorMessage)
	}

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, store.OutboxEvents()[0].Status)

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, broker.calls, "failed events are parked")
}

func TestOutboxCleanup(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, event.NewEventService(store.Outbox()).Publish(ctx, "a", 1))
	require.NoError(t, event.NewEventService(store.Outbox()).Publish(ctx, "b", 2))

	claimed, err := store.Outbox().ClaimPending(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Outbox().UpdateStatus(ctx, claimed[0].ID, model.OutboxStatusProcessed, nil))

	w := NewOutboxCleanupWorker(store.Outbox(), time.Hour, time.Minute, zerolog.Nop())
	rows, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows, "within retention")

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rows, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Len(t, store.OutboxEvents(), 1)
}
