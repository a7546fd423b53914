package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/pkg/metrics"
)

type fakeAuditPruner struct {
	cutoff time.Time
	rows   int64
	err    error
}

func (f *fakeAuditPruner) Cleanup(_ context.Context, before time.Time) (int64, error) {
	f.cutoff = before
	return f.rows, f.err
}

type fakeEventPruner struct{ calls int }

func (f *fakeEventPruner) CleanupProcessedEvents(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func TestCleanupUsesRetentionCutoff(t *testing.T) {
	audit := &fakeAuditPruner{rows: 7}
	events := &fakeEventPruner{}
	m := metrics.NewNop()
	w := NewAuditCleanupWorker(audit, events, 30, time.Hour, zerolog.Nop(), m)
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	require.NoError(t, w.Cleanup(context.Background()))

	assert.Equal(t, time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), audit.cutoff)
	assert.Equal(t, 1, events.calls)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.AuditLogsPruned))
}

func TestCleanupStopsOnAuditError(t *testing.T) {
	audit := &fakeAuditPruner{err: errors.New("db down")}
	events := &fakeEventPruner{}
	w := NewAuditCleanupWorker(audit, events, 30, time.Hour, zerolog.Nop(), metrics.NewNop())

	err := w.Cleanup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Zero(t, events.calls)
}

func TestCleanupWithoutEventPruner(t *testing.T) {
	w := NewAuditCleanupWorker(&fakeAuditPruner{}, nil, 90, time.Hour, zerolog.Nop(), metrics.NewNop())
	assert.NoError(t, w.Cleanup(context.Background()))
}
