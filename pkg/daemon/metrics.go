package daemon

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesainslie/tabkeep/pkg/daemon/store"
)

// Metrics holds the daemon's collectors. Each Service owns its registry so
// several services can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	captures        *prometheus.CounterVec
	captureBytes    prometheus.Histogram
	deletes         *prometheus.CounterVec
	upserts         prometheus.Counter
	externalRemoves prometheus.Counter
	orphanRecords   prometheus.Gauge
	orphanFiles     prometheus.Gauge
}

// NewMetrics registers the collectors. Profile and snapshot gauges are read
// from st at scrape time.
func NewMetrics(st *store.Store) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabkeep_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabkeep_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		captures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabkeep_captures_total",
			Help: "Page captures by result (ok, rejected, failed).",
		}, []string{"result"}),
		captureBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabkeep_capture_bytes",
			Help:    "Size of stored page captures.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
		deletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabkeep_saved_page_deletes_total",
			Help: "Saved page deletions by result.",
		}, []string{"result"}),
		upserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabkeep_profile_upserts_total",
			Help: "Accepted profile tab reports.",
		}),
		externalRemoves: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabkeep_snapshot_files_removed_externally_total",
			Help: "Recorded snapshot files removed or renamed outside the daemon.",
		}),
		orphanRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tabkeep_orphan_records",
			Help: "Records whose file was missing at the last reconcile.",
		}),
		orphanFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tabkeep_orphan_files",
			Help: "Files without a record at the last reconcile.",
		}),
	}

	if st != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tabkeep_profiles",
			Help: "Known profiles.",
		}, func() float64 {
			s, err := st.Stats()
			if err != nil {
				return 0
			}
			return float64(s.Profiles)
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tabkeep_snapshots",
			Help: "Recorded snapshots.",
		}, func() float64 {
			s, err := st.Stats()
			if err != nil {
				return 0
			}
			return float64(s.Snapshots)
		})
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeCapture(result string, size int64) {
	m.captures.WithLabelValues(result).Inc()
	if result == "ok" {
		m.captureBytes.Observe(float64(size))
	}
}

func (m *Metrics) observeDelete(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deletes.WithLabelValues(result).Inc()
}

func (m *Metrics) setOrphans(records, files int) {
	m.orphanRecords.Set(float64(records))
	m.orphanFiles.Set(float64(files))
}
