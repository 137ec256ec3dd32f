package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// Metrics are the prometheus collectors exposed on /metrics.
// A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	expenseLegs    *prometheus.CounterVec
	expenseAmount  *prometheus.CounterVec
	idempotentHits *prometheus.CounterVec
}

// NewMetrics registers the API collectors plus process and Go runtime
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transit_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
		expenseLegs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_expenses_created_total",
			Help: "Expense rows created, by trip type and transport.",
		}, []string{"trip_type", "transport"}),
		expenseAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_expense_amount_yen_total",
			Help: "Sum of created expense amounts in yen, by transport.",
		}, []string{"transport"}),
		idempotentHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_idempotent_replays_total",
			Help: "Create requests answered from a stored idempotent response.",
		}, []string{"route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency. The chi route pattern is
// used as the label so ids do not blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := routePattern(r)
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(statusOf(ww))).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) expensesCreated(legs []domain.Expense) {
	if m == nil {
		return
	}
	for _, e := range legs {
		m.expenseLegs.WithLabelValues(string(e.TripType), string(e.Transport)).Inc()
		m.expenseAmount.WithLabelValues(string(e.Transport)).Add(float64(e.Amount))
	}
}

func (m *Metrics) idempotentReplay(route string) {
	if m == nil {
		return
	}
	m.idempotentHits.WithLabelValues(route).Inc()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
