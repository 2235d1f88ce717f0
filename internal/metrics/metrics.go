package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// mention poll scheduler.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	cycleDuration   prometheus.Histogram
	cyclesTotal     prometheus.Counter
	cyclesSkipped   prometheus.Counter
	accountsPolled  prometheus.Counter
	mentionsTracked prometheus.Counter
	fetchErrors     *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mentionwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mentionwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mentionwatch",
		Subsystem: "polling",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one mention fetch cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	cyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mentionwatch",
		Subsystem: "polling",
		Name:      "cycles_total",
		Help:      "Total number of completed fetch cycles.",
	})

	cyclesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mentionwatch",
		Subsystem: "polling",
		Name:      "cycles_skipped_total",
		Help:      "Ticks skipped because a previous cycle was still running.",
	})

	accountsPolled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mentionwatch",
		Subsystem: "polling",
		Name:      "accounts_polled_total",
		Help:      "Total number of per-account poll attempts.",
	})

	mentionsTracked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mentionwatch",
		Subsystem: "polling",
		Name:      "mentions_tracked_total",
		Help:      "Total number of newly stored mentions.",
	})

	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mentionwatch",
		Subsystem: "polling",
		Name:      "fetch_errors_total",
		Help:      "Poll failures by classification.",
	}, []string{"class"})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal,
		cycleDuration, cyclesTotal, cyclesSkipped,
		accountsPolled, mentionsTracked, fetchErrors,
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cycleDuration:   cycleDuration,
		cyclesTotal:     cyclesTotal,
		cyclesSkipped:   cyclesSkipped,
		accountsPolled:  accountsPolled,
		mentionsTracked: mentionsTracked,
		fetchErrors:     fetchErrors,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// RecordCycle records the outcome of one completed fetch cycle.
func (c *Collector) RecordCycle(duration time.Duration, accountsPolled, newMentions int) {
	c.cyclesTotal.Inc()
	c.cycleDuration.Observe(duration.Seconds())
	c.accountsPolled.Add(float64(accountsPolled))
	c.mentionsTracked.Add(float64(newMentions))
}

// IncCycleSkipped counts a tick skipped due to an in-flight cycle.
func (c *Collector) IncCycleSkipped() {
	c.cyclesSkipped.Inc()
}

// IncFetchError counts a poll failure by class.
func (c *Collector) IncFetchError(class string) {
	c.fetchErrors.WithLabelValues(class).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
