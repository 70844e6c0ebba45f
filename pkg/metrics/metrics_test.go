package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/metrics"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}

		return fam.GetMetric()[0].GetCounter().GetValue()
	}

	t.Fatalf("metric %q not found", name)

	return 0
}

func TestPrometheus_RecordsObservations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)

	rec.SaveCompleted(50*time.Millisecond, 3)
	rec.SaveCompleted(10*time.Millisecond, 2)
	rec.RebalanceMove()
	rec.RebalanceMove()
	rec.WALReplayed(7)

	require.Equal(t, float64(5), counterValue(t, reg, "vectorlite_saved_segments_total"))
	require.Equal(t, float64(2), counterValue(t, reg, "vectorlite_rebalance_moves_total"))
	require.Equal(t, float64(7), counterValue(t, reg, "vectorlite_wal_records_replayed_total"))
}

func TestNoop_NeverPanics(t *testing.T) {
	t.Parallel()

	var n metrics.Noop
	n.SaveCompleted(time.Second, 1)
	n.RebalanceMove()
	n.SearchLatency(time.Millisecond)
	n.WALReplayed(1)
}
