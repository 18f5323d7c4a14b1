package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

// Collector holds every metric the services record. All methods are safe on
// a nil *Collector so callers can run without metrics.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	AppointmentsTotal *prometheus.CounterVec
	BookingRejections *prometheus.CounterVec

	NotificationsPublished *prometheus.CounterVec
	NotificationsProcessed *prometheus.CounterVec

	PaymentsTotal *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		AppointmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "appointments_total",
			Help:      "Appointment transitions by resulting status.",
		}, []string{"status"}),

		BookingRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "rejections_total",
			Help:      "Rejected scheduling operations by error code.",
		}, []string{"code"}),

		NotificationsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "published_total",
			Help:      "Notification jobs published by type and result.",
		}, []string{"type", "result"}),

		NotificationsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "processed_total",
			Help:      "Notification jobs consumed by type and outcome (sent, skipped, retried, dead_lettered).",
		}, []string{"type", "outcome"}),

		PaymentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "transitions_total",
			Help:      "Payment transitions by resulting status.",
		}, []string{"status"}),
	}
}

func (c *Collector) AppointmentTransition(status string) {
	if c == nil {
		return
	}
	c.AppointmentsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) Rejected(code string) {
	if c == nil || code == "" {
		return
	}
	c.BookingRejections.WithLabelValues(code).Inc()
}

func (c *Collector) NotificationPublished(jobType string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.NotificationsPublished.WithLabelValues(jobType, result).Inc()
}

func (c *Collector) NotificationProcessed(jobType, outcome string) {
	if c == nil {
		return
	}
	c.NotificationsProcessed.WithLabelValues(jobType, outcome).Inc()
}

func (c *Collector) PaymentTransition(status string) {
	if c == nil {
		return
	}
	c.PaymentsTotal.WithLabelValues(status).Inc()
}

// Middleware records request count and latency labelled by the matched chi
// route pattern, so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.InFlightGauge.Inc()
		defer c.InFlightGauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(ww.Status())

		c.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		c.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
