package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for meal lookups and snapshot persists.
// A nil *Metrics records nothing.
type Metrics struct {
	LookupBatches   *prometheus.CounterVec
	LookupIDs       prometheus.Counter
	Persists        *prometheus.CounterVec
	PersistDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
//
// Metrics:
//   - coach_nutrition_reconcile_lookup_batches_total{result}
//   - coach_nutrition_reconcile_lookup_ids_total
//   - coach_nutrition_reconcile_persists_total{op,result}
//   - coach_nutrition_reconcile_persist_duration_seconds
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LookupBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coach_nutrition",
				Subsystem: "reconcile",
				Name:      "lookup_batches_total",
				Help:      "Total number of meal lookup batches by result",
			},
			[]string{"result"}, // "success" or "error"
		),
		LookupIDs: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coach_nutrition",
				Subsystem: "reconcile",
				Name:      "lookup_ids_total",
				Help:      "Total number of distinct meal ids requested",
			},
		),
		Persists: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coach_nutrition",
				Subsystem: "reconcile",
				Name:      "persists_total",
				Help:      "Total number of persist attempts by operation and result",
			},
			[]string{"op", "result"},
		),
		PersistDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "coach_nutrition",
				Subsystem: "reconcile",
				Name:      "persist_duration_seconds",
				Help:      "Duration of snapshot persists in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
	}
}

func (m *Metrics) recordBatch(err error, ids int) {
	if m == nil {
		return
	}
	m.LookupIDs.Add(float64(ids))
	m.LookupBatches.WithLabelValues(resultLabel(err)).Inc()
}

// RecordPersist counts one persist attempt of op.
func (m *Metrics) RecordPersist(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Persists.WithLabelValues(op, resultLabel(err)).Inc()
	if op == OpSnapshot {
		m.PersistDuration.Observe(d.Seconds())
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
