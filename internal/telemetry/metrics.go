package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryandielhenn/cachelab/pkg/hashtable"
)

const namespace = "cachelab"

var (
	Registry = prometheus.NewRegistry()

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			// 0.1ms .. ~0.4s; every handler is in-memory.
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 13),
		},
		[]string{"op"},
	)

	InFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
		[]string{"op"},
	)

	ErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Requests that failed with an unexpected internal error.",
		},
	)

	// ---- Engine events ----
	ResizesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resizes_total",
			Help:      "Number of times the hash table doubled its bucket count.",
		},
	)

	ExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_total",
			Help:      "Entries removed lazily after their TTL elapsed.",
		},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(RequestsTotal, RequestDuration, InFlight, ErrorsTotal, ResizesTotal, ExpiredTotal, buildInfo, uptime)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ---- Table gauges ----

// StatsSource is anything that can report hash table stats without sweeping.
type StatsSource interface {
	Stats() hashtable.Stats
}

type tableCollector struct {
	src        StatsSource
	size       *prometheus.Desc
	entries    *prometheus.Desc
	loadFactor *prometheus.Desc
}

// NewTableCollector exports size, entry count and load factor of src on
// every scrape.
func NewTableCollector(src StatsSource) prometheus.Collector {
	return &tableCollector{
		src: src,
		size: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "size"),
			"Number of buckets in the hash table.", nil, nil),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "entries"),
			"Entries in the hash table, including expired ones not yet swept.", nil, nil),
		loadFactor: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "load_factor"),
			"Entries divided by buckets.", nil, nil),
	}
}

func (c *tableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.entries
	ch <- c.loadFactor
}

func (c *tableCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Count))
	ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, st.LoadFactor)
}

// ---- Middleware instrumentation ----

// StatusWriter records the status code written through it.
type StatusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	if sw, ok := w.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *StatusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *StatusWriter) Status() int { return w.status }

func (w *StatusWriter) BytesWritten() int { return w.bytes }

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
// Example:
//
//	mux.Handle("/keys", telemetry.Instrument("get", h))
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := NewStatusWriter(w)
		start := time.Now()

		InFlight.WithLabelValues(op).Inc()
		defer InFlight.WithLabelValues(op).Dec()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}

// MethodToOp maps an HTTP method to the "op" label used by Instrument.
func MethodToOp(m string) string {
	switch m {
	case http.MethodGet:
		return "get"
	case http.MethodPut:
		return "put"
	case http.MethodPost:
		return "post"
	case http.MethodDelete:
		return "delete"
	default:
		return "other"
	}
}
