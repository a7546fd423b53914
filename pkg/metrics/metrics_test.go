package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "physio")

	m.TherapiesCreated.WithLabelValues("TENS").Inc()
	m.TherapiesCreated.WithLabelValues("TENS").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TherapiesCreated.WithLabelValues("TENS")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewNopIsIsolated(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
