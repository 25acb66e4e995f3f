package dashboard

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the controller's Prometheus metrics
type Metrics struct {
	RefreshTotal        *prometheus.CounterVec
	RefreshDuration     *prometheus.HistogramVec
	PushNotifications   *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	AlertsDelivered     *prometheus.CounterVec
	RejectedRecords     prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "refresh_total",
			Help:      "Live refresh attempts by origin and outcome",
		}, []string{"origin", "outcome"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching from a live origin",
			Buckets:   prometheus.DefBuckets,
		}, []string{"origin"}),
		PushNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "push_notifications_total",
			Help:      "Change notifications received per table",
		}, []string{"table"}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulse",
			Name:      "push_subscriptions_active",
			Help:      "Open push subscriptions",
		}),
		AlertsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "alerts_delivered_total",
			Help:      "Alert notifications by type and outcome",
		}, []string{"type", "outcome"}),
		RejectedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "rejected_records_total",
			Help:      "Records dropped by normalisation",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RefreshTotal,
			m.RefreshDuration,
			m.PushNotifications,
			m.ActiveSubscriptions,
			m.AlertsDelivered,
			m.RejectedRecords,
		)
	}
	return m
}
