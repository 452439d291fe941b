// Package metrics provides Prometheus metrics collection for DromeBoard.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dromeboard"

// Collector holds all Prometheus metrics for DromeBoard.
// It implements cache.Observer and loader.Observer.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec
	Logins       prometheus.Counter

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   *prometheus.GaugeVec

	// Module metrics
	ModuleLoads        *prometheus.CounterVec
	ModuleLoadDuration *prometheus.HistogramVec
	ActiveShells       prometheus.Gauge

	// Results metrics
	UploadsTotal *prometheus.CounterVec
	UploadedRows prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

var (
	_ cache.Observer  = (*Collector)(nil)
	_ loader.Observer = (*Collector)(nil)
)

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),
		Logins: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total number of successful logins",
			},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Cache hits by region",
			},
			[]string{"region"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Cache misses by region",
			},
			[]string{"region"},
		),
		CacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Entries evicted by region and reason",
			},
			[]string{"region", "reason"},
		),
		CacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Current number of entries by region",
			},
			[]string{"region"},
		),
		ModuleLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "loads_total",
				Help:      "Module load attempts by module and result",
			},
			[]string{"module", "runtime", "result"},
		),
		ModuleLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "load_duration_seconds",
				Help:      "Time to fetch, resolve and construct a module",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"runtime"},
		),
		ActiveShells: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_shells",
				Help:      "Number of open dashboard shells",
			},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Total number of result uploads by status",
			},
			[]string{"status"},
		),
		UploadedRows: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploaded_rows_total",
				Help:      "Total number of rows received in uploads",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// Hit implements cache.Observer.
func (c *Collector) Hit(r cache.Region) { c.CacheHits.WithLabelValues(string(r)).Inc() }

// Miss implements cache.Observer.
func (c *Collector) Miss(r cache.Region) { c.CacheMisses.WithLabelValues(string(r)).Inc() }

// Evict implements cache.Observer.
func (c *Collector) Evict(r cache.Region, reason cache.EvictReason) {
	c.CacheEvictions.WithLabelValues(string(r), string(reason)).Inc()
}

// Size implements cache.Observer.
func (c *Collector) Size(r cache.Region, entries int) {
	c.CacheEntries.WithLabelValues(string(r)).Set(float64(entries))
}

// ModuleLoaded implements loader.Observer.
func (c *Collector) ModuleLoaded(name, runtime string, took time.Duration, err error) {
	c.ModuleLoads.WithLabelValues(name, runtime, loadResult(err)).Inc()
	if err == nil {
		c.ModuleLoadDuration.WithLabelValues(runtime).Observe(took.Seconds())
	}
}

func loadResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, loader.ErrScriptLoad):
		return "script_error"
	case errors.Is(err, loader.ErrConstructorMissing):
		return "constructor_missing"
	case errors.Is(err, loader.ErrModuleUnregistered):
		return "unregistered"
	default:
		return "error"
	}
}

// ConfigReloaded records the outcome of a configuration reload.
func (c *Collector) ConfigReloaded(err error, at time.Time) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}

// Middleware records request count, latency and in-flight requests. Routes
// are labeled by their chi pattern so path parameters do not create series.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.RequestsInFlight.Inc()
		defer c.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
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
		code := strconv.Itoa(status)
		c.RequestsTotal.WithLabelValues(r.Method, route, code).Inc()
		c.RequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
	})
}
