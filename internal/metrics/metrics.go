package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "imgbase"

var (
	// HTTPRequestsTotal counts served requests by method, route template and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests, partitioned by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	// UploadsTotal counts upload operations by path (sign, complete, proxy) and outcome.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of upload operations, partitioned by path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	// DeliveriesTotal counts delivery requests by kind (variant, short) and status code.
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of delivery requests, partitioned by kind and status code.",
		},
		[]string{"kind", "status"},
	)

	// SweptImagesTotal counts pending rows handled by the sweep, by outcome.
	SweptImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_images_total",
			Help:      "Total number of stale pending images handled by the sweep, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, UploadsTotal, DeliveriesTotal, SweptImagesTotal)
}
