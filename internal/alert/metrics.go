package alert

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the detector's Prometheus instruments.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	AlertsTotal          *prometheus.CounterVec
	BlockedIPsTotal      prometheus.Counter
	NotificationsSent    *prometheus.CounterVec
	StoreErrors          *prometheus.CounterVec
	ClassifyDuration     prometheus.Histogram
}

// NewMetrics builds the instrument set. Register it on a registry before
// use.
func NewMetrics() *Metrics {
	return &Metrics{
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netshield_classifications_total",
				Help: "Feature vectors classified, by attack family",
			},
			[]string{"attack_type"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netshield_alerts_total",
				Help: "Alerts created, by severity",
			},
			[]string{"severity"},
		),
		BlockedIPsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "netshield_blocked_ips_total",
				Help: "Blocked IP records created, auto-block and manual",
			},
		),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netshield_notifications_sent_total",
				Help: "Notifications delivered, by kind",
			},
			[]string{"kind"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netshield_store_errors_total",
				Help: "Failed store operations, by operation",
			},
			[]string{"operation"},
		),
		ClassifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "netshield_classify_duration_seconds",
				Help:    "Time spent classifying one feature vector",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClassificationsTotal.Describe(ch)
	m.AlertsTotal.Describe(ch)
	m.BlockedIPsTotal.Describe(ch)
	m.NotificationsSent.Describe(ch)
	m.StoreErrors.Describe(ch)
	m.ClassifyDuration.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ClassificationsTotal.Collect(ch)
	m.AlertsTotal.Collect(ch)
	m.BlockedIPsTotal.Collect(ch)
	m.NotificationsSent.Collect(ch)
	m.StoreErrors.Collect(ch)
	m.ClassifyDuration.Collect(ch)
}
