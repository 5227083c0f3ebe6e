// AngelaMos | 2026
// metrics.go

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments HTTP traffic and the enquiry pipeline.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inflight  prometheus.Gauge
	Enquiries *prometheus.CounterVec
	Mail      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfp",
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by route and status.",
		}, []string{"method", "route", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nfp",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nfp",
			Name:      "http_inflight_requests",
			Help:      "Requests currently being served.",
		}),

		Enquiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfp",
			Name:      "enquiries_total",
			Help:      "Enquiry submissions, by result.",
		}, []string{"result"}),

		Mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfp",
			Name:      "mail_sent_total",
			Help:      "Outbound email attempts, by kind and result.",
		}, []string{"kind", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.duration, m.inflight, m.Enquiries, m.Mail,
	} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			m.inflight.Dec()

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			m.duration.WithLabelValues(r.Method, route).
				Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(r.Method, route,
				strconv.Itoa(rec.Status())).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

// ObserveEnquiry counts a submission outcome. Safe on a nil receiver.
func (m *Metrics) ObserveEnquiry(result string) {
	if m == nil {
		return
	}
	m.Enquiries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveMail(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Mail.WithLabelValues(kind, result).Inc()
}
