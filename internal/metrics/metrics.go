package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkly",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	spotBookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkly",
			Name:      "spot_bookings_total",
			Help:      "Spot bookings by path (direct or reserve).",
		},
		[]string{"path"},
	)

	spotReleases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkly",
			Name:      "spot_releases_total",
			Help:      "Completed spot releases.",
		},
	)

	revenue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkly",
			Name:      "billed_revenue_total",
			Help:      "Total cost billed on release.",
		},
	)

	ledgerMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkly",
			Name:      "ledger_misses_total",
			Help:      "Releases with no matching open history record.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, spotBookings, spotReleases, revenue, ledgerMisses)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBooking counts a booking on the given path: "book" or "reserve".
func IncBooking(path string) {
	spotBookings.WithLabelValues(path).Inc()
}

// IncRelease counts a release and accumulates its billed cost.
func IncRelease(cost float64) {
	spotReleases.Inc()
	revenue.Add(cost)
}

// IncLedgerMiss counts a release that found no open ledger entry.
func IncLedgerMiss() {
	ledgerMisses.Inc()
}
