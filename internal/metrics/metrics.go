package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantmarket_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantmarket_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	purchaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantmarket_purchase_duration_seconds",
		Help:    "Duration of purchase transactions by result",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	unitsSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plantmarket_units_sold_total",
		Help: "Product units sold through committed purchases",
	})

	statusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantmarket_order_status_changes_total",
		Help: "Order status transitions",
	}, []string{"to"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantmarket_events_published_total",
		Help: "Domain events handed to the broker by topic and result",
	}, []string{"topic", "result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObservePurchase records a purchase attempt with a result label such as
// "ok", "insufficient_stock" or "busy".
func ObservePurchase(result string, duration time.Duration) {
	purchaseDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func AddUnitsSold(n int) {
	if n > 0 {
		unitsSold.Add(float64(n))
	}
}

func ObserveStatusChange(to string) {
	statusChanges.WithLabelValues(to).Inc()
}

func ObserveEventPublished(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(topic, result).Inc()
}
