package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for record curation, search and confidence changes.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Curator writes by operation (create, update, comment, publications, review)
	RecordWrites *prometheus.CounterVec

	// Rejected submissions by stage: schema, reference, panel
	ValidationFailures *prometheus.CounterVec

	AllocationFailures prometheus.Counter

	ConfidenceTransitions *prometheus.CounterVec
	NotificationFailures  prometheus.Counter

	SearchLatency  *prometheus.HistogramVec
	IndexedRecords prometheus.Gauge

	OperationLatency *prometheus.HistogramVec
}

// New registers the module metrics with reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RecordWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "g2p_record_writes_total",
			Help: "Total record writes by operation",
		}, []string{"operation"}),

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "g2p_validation_failures_total",
			Help: "Rejected curation submissions by validation stage",
		}, []string{"stage"}),

		AllocationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "g2p_stable_id_allocation_failures_total",
			Help: "Stable ID allocations that failed",
		}),

		ConfidenceTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "g2p_confidence_transitions_total",
			Help: "Committed confidence transitions by source and target level",
		}, []string{"from", "to"}),

		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "g2p_confidence_notification_failures_total",
			Help: "Confidence change notifications that could not be delivered",
		}),

		SearchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "g2p_search_duration_seconds",
			Help:    "Duration of search queries by dimension",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"type"}),

		IndexedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "g2p_search_indexed_records",
			Help: "Records currently held by the search index",
		}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "g2p_operation_duration_seconds",
			Help:    "Duration of record service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementWrite(operation string) {
	if m != nil {
		m.RecordWrites.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncrementValidationFailure(stage string) {
	if m != nil {
		m.ValidationFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncrementAllocationFailure() {
	if m != nil {
		m.AllocationFailures.Inc()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.ConfidenceTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementNotificationFailure() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

// ObserveSearch records the duration of one search dimension ("all" for fan-out queries).
func (m *Metrics) ObserveSearch(searchType string, start time.Time) {
	if m != nil {
		m.SearchLatency.WithLabelValues(searchType).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) SetIndexedRecords(n int) {
	if m != nil {
		m.IndexedRecords.Set(float64(n))
	}
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
