// Package metrics defines the service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	verifications *prometheus.CounterVec
	idsIssued     *prometheus.CounterVec
	reports       *prometheus.CounterVec
	archives      *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers all collectors with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "printshop_certificate_verifications_total",
			Help: "Certificate verifications by outcome (valid, invalid, not_found, error).",
		}, []string{"result"}),
		idsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "printshop_ids_issued_total",
			Help: "Sequential identifiers issued by entity kind.",
		}, []string{"kind"}),
		reports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "printshop_reports_rendered_total",
			Help: "Verification report renders by outcome.",
		}, []string{"outcome"}),
		archives: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "printshop_reports_archived_total",
			Help: "Verification report archive attempts by outcome.",
		}, []string{"outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "printshop_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "printshop_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) Verification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IDIssued(kind string) {
	if m == nil {
		return
	}
	m.idsIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) ReportRendered(ok bool) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) ReportArchived(ok bool) {
	if m == nil {
		return
	}
	m.archives.WithLabelValues(outcome(ok)).Inc()
}

// HTTPRequest records one finished request.
func (m *Metrics) HTTPRequest(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
