package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace is the leading part of all published metrics of the animation runtime.
const namespace = "anim"

const databaseSubsystem = "database"

type metrics struct {
	Registered    prometheus.Gauge // Number of registered tiers.
	Resident      prometheus.Gauge // Number of tiers streamed in.
	ResidentBytes prometheus.Gauge // Decompressed bytes held by resident tiers.

	// These metrics have an extra label status = {"ok", "error"}
	StreamIns  *prometheus.CounterVec
	StreamOuts prometheus.Counter

	// resolved once, TierData must not allocate
	hits    prometheus.Counter
	misses  prometheus.Counter
	lookups *prometheus.CounterVec
}

func newMetrics(labels prometheus.Labels) *metrics {
	m := &metrics{
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   databaseSubsystem,
			Name:        "tiers_registered",
			Help:        "Number of tiers known to the database.",
			ConstLabels: labels,
		}),
		Resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   databaseSubsystem,
			Name:        "tiers_resident",
			Help:        "Number of tiers whose animated data is streamed in.",
			ConstLabels: labels,
		}),
		ResidentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   databaseSubsystem,
			Name:        "resident_bytes",
			Help:        "Size of the decompressed animated data held in memory.",
			ConstLabels: labels,
		}),
		StreamIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   databaseSubsystem,
			Name:        "stream_in_total",
			Help:        "Total number of tier stream ins.",
			ConstLabels: labels,
		}, []string{"status"}),
		StreamOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   databaseSubsystem,
			Name:        "stream_out_total",
			Help:        "Total number of tier evictions.",
			ConstLabels: labels,
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   databaseSubsystem,
			Name:        "lookup_total",
			Help:        "Total number of tier data requests by decoders.",
			ConstLabels: labels,
		}, []string{"status"}),
	}
	m.hits = m.lookups.WithLabelValues("hit")
	m.misses = m.lookups.WithLabelValues("miss")
	return m
}

// PrometheusCollectors satisfies the prom.PrometheusCollector interface.
func (m *metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Registered,
		m.Resident,
		m.ResidentBytes,
		m.StreamIns,
		m.StreamOuts,
		m.lookups,
	}
}
