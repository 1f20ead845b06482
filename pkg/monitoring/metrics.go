package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection. A nil collector
// is valid and records nothing.
type MetricsCollector struct {
	serviceName string
	gatherer    prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	hl7MessagesTotal    *prometheus.CounterVec
	accessionsIssued    *prometheus.CounterVec
	worklistTransitions *prometheus.CounterVec
	externalToolErrors  *prometheus.CounterVec
	dbQueryDuration     *prometheus.HistogramVec
}

// NewMetricsCollector creates a collector registered on the default registry
func NewMetricsCollector(serviceName string) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(serviceName, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsCollectorWithRegistry creates a collector on a caller-owned registry
func NewMetricsCollectorWithRegistry(serviceName string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *MetricsCollector {
	m := &MetricsCollector{
		serviceName: serviceName,
		gatherer:    gatherer,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "service"},
		),
		hl7MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl7_messages_total",
				Help: "ADT messages generated or parsed, by trigger and outcome",
			},
			[]string{"trigger", "outcome", "service"},
		),
		accessionsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accession_numbers_issued_total",
				Help: "Accession numbers issued, by modality",
			},
			[]string{"modality", "service"},
		),
		worklistTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worklist_transitions_total",
				Help: "Worklist entries moved into a status",
			},
			[]string{"status", "service"},
		),
		externalToolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_tool_failures_total",
				Help: "Failures of external tools such as dcmodify or the PACS",
			},
			[]string{"tool", "service"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"query_type", "service"},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.hl7MessagesTotal,
		m.accessionsIssued,
		m.worklistTransitions,
		m.externalToolErrors,
		m.dbQueryDuration,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordHL7Message counts a generated or parsed ADT message
func (m *MetricsCollector) RecordHL7Message(trigger string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.hl7MessagesTotal.WithLabelValues(trigger, outcome, m.serviceName).Inc()
}

// RecordAccession counts an issued accession number
func (m *MetricsCollector) RecordAccession(modality string) {
	if m == nil {
		return
	}
	m.accessionsIssued.WithLabelValues(modality, m.serviceName).Inc()
}

// RecordWorklistTransition counts a worklist entry entering status
func (m *MetricsCollector) RecordWorklistTransition(status string) {
	if m == nil {
		return
	}
	m.worklistTransitions.WithLabelValues(status, m.serviceName).Inc()
}

// RecordExternalToolFailure counts a failed external tool call
func (m *MetricsCollector) RecordExternalToolFailure(tool string) {
	if m == nil {
		return
	}
	m.externalToolErrors.WithLabelValues(tool, m.serviceName).Inc()
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
