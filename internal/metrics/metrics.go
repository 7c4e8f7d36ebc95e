package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reliefnet_alerts_published_total",
		Help: "Total number of alerts fanned out to subscribers.",
	})
	AlertDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reliefnet_alert_deliveries_total",
		Help: "Per-session alert delivery attempts by outcome.",
	}, []string{"outcome"})
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reliefnet_subscribers",
		Help: "Number of currently connected alert subscribers.",
	})
	HelpRequestsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reliefnet_help_requests_total",
		Help: "Total number of help requests accepted.",
	})
	GeocodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reliefnet_geocode_failures_total",
		Help: "Total number of location lookups that resolved no coordinates.",
	})
)
