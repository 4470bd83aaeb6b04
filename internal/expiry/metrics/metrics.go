package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SweepRunsTotal      prometheus.Counter
	SweepErrorsTotal    prometheus.Counter
	RecordsExpiredTotal *prometheus.CounterVec
	SelfHealsTotal      *prometheus.CounterVec
	LastSweepBatchSize  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		SweepRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidhub_expiry_sweep_runs_total",
			Help: "Total number of expiration sweep runs",
		}),
		SweepErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidhub_expiry_sweep_errors_total",
			Help: "Total number of per-record failures skipped during sweeps",
		}),
		RecordsExpiredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bidhub_expiry_records_expired_total",
			Help: "Total number of records transitioned to inactive by the sweeper",
		}, []string{"kind"}),
		SelfHealsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bidhub_expiry_self_heals_total",
			Help: "Total number of stale records transitioned by the gate's read path",
		}, []string{"kind"}),
		LastSweepBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bidhub_expiry_last_sweep_batch_size",
			Help: "Number of stale records selected by the most recent sweep run",
		}),
	}
}

func (m *Metrics) IncrementSweepRuns() {
	m.SweepRunsTotal.Inc()
}

func (m *Metrics) IncrementSweepErrors() {
	m.SweepErrorsTotal.Inc()
}

func (m *Metrics) IncrementRecordsExpired(kind string) {
	m.RecordsExpiredTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementSelfHeals(kind string) {
	m.SelfHealsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetLastSweepBatchSize(size int) {
	m.LastSweepBatchSize.Set(float64(size))
}
