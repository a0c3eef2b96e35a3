package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Quote outcomes used as the "outcome" label.
const (
	OutcomeOK            = "ok"
	OutcomeInvalid       = "invalid"
	OutcomeNotFound      = "not_found"
	OutcomeMisconfigured = "misconfigured"
	OutcomeError         = "error"
)

var (
	// Quotes computed, partitioned by pricing model and outcome
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printquote_quotes_total",
			Help: "Total number of quote requests processed",
		},
		[]string{"model", "outcome"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printquote_quote_duration_seconds",
			Help:    "Quote latency in seconds, store lookup included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	QuoteCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printquote_quote_cache_hits_total",
			Help: "Quotes served from the quote cache",
		},
	)

	// Products processed by the from-price backfill, by result
	BackfillProducts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printquote_backfill_products_total",
			Help: "Products processed by the from-price backfill",
		},
		[]string{"result"},
	)

	BackfillRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printquote_backfill_runs_total",
			Help: "Completed from-price backfill runs",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Middleware records request count and latency. The route label is the chi
// route pattern so ids in the path do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
