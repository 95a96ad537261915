package portsweep

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	require.NotNil(t, m.EnumeratedHosts)
	require.NotNil(t, m.PortsDiscovered)
	require.NotNil(t, m.ProbeErrors)
	require.NotNil(t, m.ScanDuration)
	require.NotNil(t, m.OperationStatus)
	require.NotNil(t, m.ThreadUtilization)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.PortsDiscovered.WithLabelValues("10.0.0.1").Inc()
	m.PortsDiscovered.WithLabelValues("10.0.0.1").Inc()
	m.ProbeErrors.WithLabelValues("bad-host").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PortsDiscovered.WithLabelValues("10.0.0.1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeErrors.WithLabelValues("bad-host")))
}

func TestMetricsGauges(t *testing.T) {
	m := NewMetrics()

	m.EnumeratedHosts.WithLabelValues("10.0.0.0/24", "run-1").Set(254)
	m.ThreadUtilization.WithLabelValues("scan").Set(100)

	assert.Equal(t, 254.0, testutil.ToFloat64(m.EnumeratedHosts.WithLabelValues("10.0.0.0/24", "run-1")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ThreadUtilization.WithLabelValues("scan")))
}
