// Package metrics exposes the coordinator's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mapping-related Prometheus metrics. Kept in a standalone package to avoid
// import cycles between the mapping core and anything that wires a registry.
var (
	PutMappingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapping_put_duration_seconds",
		Help:    "Duration of a PutMappingExecutor.execute batch",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	VersionBumps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapping_version_bumps_total",
		Help: "Number of effective mapping-version increments, per index",
	}, []string{"index"})

	DriftDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapping_drift_total",
		Help: "Number of times RefreshExecutor re-synced cluster metadata with a live mapper",
	}, []string{"index"})

	RequestFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapping_put_request_failures_total",
		Help: "Per-request PutMapping failures, by error kind",
	}, []string{"kind"})

	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapping_batch_size",
		Help:    "Number of tasks submitted per executor.execute call",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	})
)

// Register registers the mapping metrics on the given registry (or the
// default registry if reg is nil). Safe to call more than once.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		PutMappingDuration,
		VersionBumps,
		DriftDetected,
		RequestFailures,
		BatchSize,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
