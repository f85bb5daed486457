package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitMetrics(reg)

	FanoutSourceCalls.WithLabelValues("lookup", StatusOK).Inc()
	TenantsProvisioned.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "dird_fanout_source_calls_total")
	assert.Contains(t, names, "dird_tenants_provisioned_total")

	// registering twice only logs
	assert.NotPanics(t, func() { InitMetrics(reg) })
}
