package portsweep

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics used by the application.
type Metrics struct {
	EnumeratedHosts   *prometheus.GaugeVec
	PortsDiscovered   *prometheus.CounterVec
	ProbeErrors       *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	OperationStatus   *prometheus.CounterVec
	ThreadUtilization *prometheus.GaugeVec
}

// NewMetrics initializes and returns a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		EnumeratedHosts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portsweep_enumerated_hosts",
				Help: "Number of hosts expanded from the target expression.",
			},
			[]string{"target_input", "scan_id"},
		),
		PortsDiscovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portsweep_open_ports_total",
				Help: "Total number of open ports discovered.",
			},
			[]string{"host"},
		),
		ProbeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portsweep_probe_errors_total",
				Help: "Total number of probes that failed before a connect verdict.",
			},
			[]string{"host"},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portsweep_scan_duration_seconds",
				Help:    "Duration of scanning operations in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"operation_type", "scan_id"},
		),
		OperationStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portsweep_operation_status",
				Help: "Status of operations (success=1, failure=0).",
			},
			[]string{"operation", "status"},
		),
		ThreadUtilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portsweep_thread_utilization",
				Help: "Number of configured scan workers.",
			},
			[]string{"operation"},
		),
	}
}

// Register registers all metrics with Prometheus.
func (m *Metrics) Register() {
	prometheus.MustRegister(
		m.EnumeratedHosts,
		m.PortsDiscovered,
		m.ProbeErrors,
		m.ScanDuration,
		m.OperationStatus,
		m.ThreadUtilization,
	)
}
