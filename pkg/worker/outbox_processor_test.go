package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	"github.com/jwalitptl/physio-api/pkg/logger"
	"github.com/jwalitptl/physio-api/pkg/messaging"
	"github.com/jwalitptl/physio-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	failTimes int
	calls     int
	published []messaging.Envelope
	channels  []string
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failTimes {
		return errors.New("connection refused")
	}
	b.published = append(b.published, message.(messaging.Envelope))
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func newProcessor(t *testing.T, store *memory.Store, broker *fakeBroker, cfg OutboxProcessorConfig) *OutboxProcessor {
	t.Helper()
	p := NewOutboxProcessor(store.Outbox(), broker, cfg, logger.Nop(), metrics.NewNop())
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		Channel:       "physio.events",
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Second,
		MaxRetries:    2,
	}
}

func seedEvent(t *testing.T, store *memory.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	e, err := model.NewOutboxEvent(eventType, uuid.New(), map[string]string{"k": "v"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(context.Background(), e))
	return e
}

func TestProcessBatchPublishesEnvelopes(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{}
	e := seedEvent(t, store, model.EventTherapyCreated)

	require.NoError(t, newProcessor(t, store, broker, testConfig()).ProcessBatch(context.Background()))

	require.Len(t, broker.published, 1)
	assert.Equal(t, "physio.events", broker.channels[0])
	assert.Equal(t, e.ID, broker.published[0].ID)
	assert.Equal(t, model.EventTherapyCreated, broker.published[0].Type)
	assert.JSONEq(t, `{"k":"v"}`, string(broker.published[0].Payload))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
}

func TestProcessBatchRetriesWithinAttempts(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{failTimes: 1}
	seedEvent(t, store, model.EventSessionCompleted)

	require.NoError(t, newProcessor(t, store, broker, testConfig()).ProcessBatch(context.Background()))

	assert.Equal(t, 2, broker.calls)
	assert.Equal(t, model.OutboxStatusProcessed, store.OutboxEvents()[0].Status)
}

func TestProcessBatchSchedulesRetryThenDeadLetters(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{failTimes: 100}
	seedEvent(t, store, model.EventPatientCreated)

	p := newProcessor(t, store, broker, testConfig())
	now := time.Now()
	p.now = func() time.Time { return now }

	require.NoError(t, p.ProcessBatch(context.Background()))
	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].RetryAt)
	assert.True(t, events[0].RetryAt.After(now))
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, "connection refused", *events[0].ErrorMessage)

	// not due yet
	require.NoError(t, p.ProcessBatch(context.Background()))
	assert.Equal(t, 2, broker.calls)
}

func TestProcessEventDeadLettersAtMaxRetries(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{failTimes: 100}
	e := seedEvent(t, store, model.EventPatientCreated)
	e.RetryCount = 1

	p := newProcessor(t, store, broker, testConfig())
	err := store.Outbox().ClaimPending(context.Background(), 10, func(tx repository.OutboxTx, _ []*model.OutboxEvent) error {
		return p.processEvent(context.Background(), tx, e)
	})
	require.NoError(t, err)
	assert.Empty(t, store.OutboxEvents())
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := newProcessor(t, memory.NewStore(), &fakeBroker{}, testConfig())
	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, time.Hour, p.backoff(30))
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(memory.NewStore().Outbox(), &fakeBroker{}, cfg, logger.Nop(), metrics.NewNop())
	})
}
