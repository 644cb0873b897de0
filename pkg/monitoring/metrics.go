package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Authorization decision metrics
	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"check", "permission", "allowed", "service"},
	)

	authzDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Duration of authorization decisions in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"check", "service"},
	)

	// Policy evaluation metrics
	policyEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_evaluations_total",
			Help: "Total number of access policy evaluations",
		},
		[]string{"policy", "matched", "service"},
	)

	// Delegation metrics
	delegationsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "delegations_active",
			Help: "Number of delegations granted minus revoked since start",
		},
		[]string{"kind", "service"},
	)

	// Emergency access metrics
	emergencyAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_access_total",
			Help: "Total number of emergency access grants and revocations",
		},
		[]string{"action", "condition", "service"},
	)

	// Audit log metrics
	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events",
		},
		[]string{"event_type", "success", "service"},
	)

	// Store metrics
	storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of state store operations in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation", "service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		authzDecisionsTotal,
		authzDecisionDuration,
		policyEvaluationsTotal,
		delegationsActive,
		emergencyAccessTotal,
		auditEventsTotal,
		storeOperationDuration,
		systemErrors,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDecision records an authorization decision. check is the entry
// point used, e.g. "permission", "delegated" or "policy".
func (m *MetricsCollector) RecordDecision(check, permission string, allowed bool, duration time.Duration) {
	authzDecisionsTotal.WithLabelValues(check, permission, strconv.FormatBool(allowed), m.serviceName).Inc()
	authzDecisionDuration.WithLabelValues(check, m.serviceName).Observe(duration.Seconds())
}

// RecordPolicyEvaluation records an access policy evaluation
func (m *MetricsCollector) RecordPolicyEvaluation(policy string, matched bool) {
	policyEvaluationsTotal.WithLabelValues(policy, strconv.FormatBool(matched), m.serviceName).Inc()
}

// RecordDelegationChange records a delegation grant or revocation. kind is
// "full" or "scoped"; delta is +1 on grant and -1 on revoke.
func (m *MetricsCollector) RecordDelegationChange(kind string, delta int) {
	delegationsActive.WithLabelValues(kind, m.serviceName).Add(float64(delta))
}

// RecordEmergencyAccess records emergency access activity
func (m *MetricsCollector) RecordEmergencyAccess(action, condition string) {
	emergencyAccessTotal.WithLabelValues(action, condition, m.serviceName).Inc()
}

// RecordAuditEvent records audit event metrics
func (m *MetricsCollector) RecordAuditEvent(eventType string, success bool) {
	auditEventsTotal.WithLabelValues(eventType, strconv.FormatBool(success), m.serviceName).Inc()
}

// RecordStoreOperation records state store operation metrics
func (m *MetricsCollector) RecordStoreOperation(operation string, duration time.Duration) {
	storeOperationDuration.WithLabelValues(operation, m.serviceName).Observe(duration.Seconds())
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
