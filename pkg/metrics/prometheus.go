package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a prometheus.Registerer-backed Recorder, mirroring the
// shape of a typical registry-scoped metrics package rather than relying on
// prometheus' global default registry.
type Prometheus struct {
	saveDuration      prometheus.Histogram
	savedSegments     prometheus.Counter
	rebalanceMoves    prometheus.Counter
	searchLatency     prometheus.Histogram
	walRecordsReplayed prometheus.Counter
}

// NewPrometheus registers vectorlite's metrics on reg and returns a
// Recorder backed by them.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "vectorlite_save_duration_seconds",
			Help: "Duration of save operations.",
		}),
		savedSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorlite_saved_segments_total",
			Help: "Total segments written across all saves.",
		}),
		rebalanceMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorlite_rebalance_moves_total",
			Help: "Total segment moves applied during rebalance.",
		}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "vectorlite_search_duration_seconds",
			Help: "Duration of search operations.",
		}),
		walRecordsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorlite_wal_records_replayed_total",
			Help: "Total WAL records replayed on open.",
		}),
	}

	reg.MustRegister(p.saveDuration, p.savedSegments, p.rebalanceMoves, p.searchLatency, p.walRecordsReplayed)

	return p
}

func (p *Prometheus) SaveCompleted(d time.Duration, segments int) {
	p.saveDuration.Observe(d.Seconds())
	p.savedSegments.Add(float64(segments))
}

func (p *Prometheus) RebalanceMove() { p.rebalanceMoves.Inc() }

func (p *Prometheus) SearchLatency(d time.Duration) { p.searchLatency.Observe(d.Seconds()) }

func (p *Prometheus) WALReplayed(records int) { p.walRecordsReplayed.Add(float64(records)) }
