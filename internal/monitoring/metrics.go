package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Fan-out call outcomes.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

var (
	FanoutSourceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dird_fanout_source_calls_total",
			Help: "Total number of source calls made by fan-out, by service and outcome",
		},
		[]string{"service", "status"},
	)
	FanoutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dird_fanout_duration_seconds",
			Help:    "Duration of fan-out queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"service"},
	)
	TenantsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dird_tenants_provisioned_total",
			Help: "Total number of tenants provisioned by status",
		},
		[]string{"status"},
	)
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dird_tenant_provisioning_duration_seconds",
			Help:    "Duration of tenant provisioning in seconds",
			Buckets: prometheus.LinearBuckets(0, 0.25, 10),
		},
	)
)

// InitMetrics registers the directory metrics with reg, the default
// registerer when nil.
func InitMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := map[string]prometheus.Collector{
		"FanoutSourceCalls":    FanoutSourceCalls,
		"FanoutDuration":       FanoutDuration,
		"TenantsProvisioned":   TenantsProvisioned,
		"ProvisioningDuration": ProvisioningDuration,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Error().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
}
