// Package metrics exposes Prometheus collectors for the ETL loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tamperlog"

// Cycle status label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics holds the ETL collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec
	RowsFetched   prometheus.Counter
	RowsInserted  prometheus.Counter
	RowsSkipped   prometheus.Counter
	BatchesTotal  prometheus.Counter
	Watermark     prometheus.Gauge
	WindowOpen    prometheus.Gauge
	CycleDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "ETL cycles run, by outcome",
			},
			[]string{"status"},
		),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Source rows read",
		}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Target rows inserted",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Source rows dropped by the transformer",
		}),
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches committed to the target",
		}),
		Watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_tamper_log_id",
			Help:      "Highest tamper_log_id known to be loaded",
		}),
		WindowOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_open",
			Help:      "1 while the allowed run window is open",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one ETL cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CyclesTotal,
			m.RowsFetched,
			m.RowsInserted,
			m.RowsSkipped,
			m.BatchesTotal,
			m.Watermark,
			m.WindowOpen,
			m.CycleDuration,
		)
	}
	return m
}

// ObserveBatch records one committed batch.
func (m *Metrics) ObserveBatch(fetched, inserted, skipped int, watermark int64) {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.RowsFetched.Add(float64(fetched))
	m.RowsInserted.Add(float64(inserted))
	m.RowsSkipped.Add(float64(skipped))
	m.Watermark.Set(float64(watermark))
}

// ObserveCycle records the outcome of one cycle.
func (m *Metrics) ObserveCycle(err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(duration.Seconds())
}

// SetWatermark publishes the watermark read at the start of a cycle.
func (m *Metrics) SetWatermark(id int64) {
	if m == nil {
		return
	}
	m.Watermark.Set(float64(id))
}

// SetWindowOpen publishes the gate state.
func (m *Metrics) SetWindowOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.WindowOpen.Set(1)
		return
	}
	m.WindowOpen.Set(0)
}
