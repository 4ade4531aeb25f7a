package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	NotesProcessedTotal   prometheus.Counter
	NotesSkippedTotal     *prometheus.CounterVec
	MentionsExtracted     *prometheus.CounterVec
	BatchDuration         prometheus.Histogram
	BatchesPersistedTotal prometheus.Counter
	RunsTotal             *prometheus.CounterVec
	PatternsLoaded        prometheus.Gauge

	DBInsertDuration prometheus.Histogram
	StallResetsTotal prometheus.Counter
}

func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		NotesProcessedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "notes_processed_total",
			Help:      "Total clinical notes scanned by the extraction engine.",
		}),

		NotesSkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "notes_skipped_total",
			Help:      "Notes skipped before extraction, by reason.",
		}, []string{"reason"}),

		MentionsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "mentions_extracted_total",
			Help:      "Mentions extracted, by pattern kind.",
		}, []string{"kind"}),

		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "batch_duration_seconds",
			Help:      "Per-batch extraction and persistence latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),

		BatchesPersistedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "batches_persisted_total",
			Help:      "Batches successfully written to storage.",
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Extraction runs by final outcome.",
		}, []string{"outcome"}),

		PatternsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "library",
			Name:      "patterns_loaded",
			Help:      "Usable patterns in the active symptom library.",
		}),

		DBInsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "mention_insert_duration_seconds",
			Help:      "Mention batch insert latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		StallResetsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "monitor",
			Name:      "stall_resets_total",
			Help:      "In-progress statuses forced to reset by the stall monitor.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
