package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SyncsTotal counts completed tenant sync runs by outcome.
	SyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seclens",
			Name:      "syncs_total",
			Help:      "Total number of tenant sync runs by outcome",
		},
		[]string{"tenant", "status"},
	)

	// SyncDuration observes wall time of tenant sync runs.
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seclens",
			Name:      "sync_duration_seconds",
			Help:      "Duration of tenant sync runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"tenant"},
	)

	// FetchErrors counts upstream fetch failures per domain.
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seclens",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream domain fetch failures",
		},
		[]string{"tenant", "domain"},
	)

	// NormalizationDrops counts records dropped during normalization.
	NormalizationDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seclens",
			Name:      "normalization_drops_total",
			Help:      "Total number of upstream records dropped during normalization",
		},
		[]string{"tenant", "domain"},
	)

	// SnapshotFindings tracks the size of the current snapshot per key.
	SnapshotFindings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seclens",
			Name:      "snapshot_findings",
			Help:      "Number of findings in the current snapshot",
		},
		[]string{"tenant", "domain"},
	)

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SyncsTotal,
			SyncDuration,
			FetchErrors,
			NormalizationDrops,
			SnapshotFindings,
		)
	})
}
