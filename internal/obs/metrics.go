package obs

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dispatchdesk.io/internal/access"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Permission decisions by dashboard, outcome and reason.",
		},
		[]string{"dashboard", "decision", "reason"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_status_transitions_total",
			Help: "Committed account status transitions.",
		},
		[]string{"from", "to", "cause"},
	)

	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_sweeps_total",
			Help: "Reconciler sweeps by result.",
		},
		[]string{"result"},
	)

	reactivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_reactivations_total",
		Help: "Accounts returned to ACTIVE by the reconciler sweep.",
	})
)

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			decisionsTotal, transitionsTotal, sweepsTotal, reactivationsTotal)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument measures request count, latency and concurrency. Paths are
// labelled by route pattern so ids do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			path = rc.RoutePattern()
		}
		if path == "" {
			path = CanonicalPath(r.URL.Path)
		}
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// CanonicalPath collapses account ids in unrouted paths.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "accounts" {
		switch {
		case len(parts) == 3:
			return "/v1/accounts/{id}"
		case len(parts) == 4:
			switch parts[3] {
			case "activate", "status", "role", "login-events":
				return "/v1/accounts/{id}/" + parts[3]
			}
		}
	}
	return path
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// MetricsObserver counts decisions and transitions.
type MetricsObserver struct{}

var _ access.Observer = MetricsObserver{}

func (MetricsObserver) ObserveDecision(_ context.Context, ev access.DecisionEvent) {
	decisionsTotal.WithLabelValues(string(ev.Dashboard), ev.Decision.String(), ev.Reason.String()).Inc()
}

func (MetricsObserver) ObserveTransition(_ context.Context, ev access.TransitionEvent) {
	transitionsTotal.WithLabelValues(string(ev.From), string(ev.To), string(ev.Cause)).Inc()
}

// ObserveSweep records the outcome of one reconciler run.
func ObserveSweep(res access.SweepResult, err error) {
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
	} else {
		sweepsTotal.WithLabelValues("ok").Inc()
	}
	reactivationsTotal.Add(float64(res.Reactivated))
}
