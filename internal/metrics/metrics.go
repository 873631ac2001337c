package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total requests received by the execution endpoint
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kolibri",
			Name:      "requests_total",
			Help:      "Total number of requests received",
		},
		[]string{"method"},
	)

	// ResponseDuration tracks end-to-end request handling duration
	ResponseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kolibri",
			Name:      "response_duration_seconds",
			Help:      "Request handling duration in seconds, including any stub delay",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// NoMatchTotal tracks requests for which the resolver found no stub
	NoMatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kolibri",
			Name:      "no_match_total",
			Help:      "Total number of requests for which no stub resolved",
		},
		[]string{"method"},
	)

	// ResolverErrorsTotal tracks resolution failures other than no-match,
	// such as the uniqueness invariant violations in the stub resolver.
	ResolverErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kolibri",
			Name:      "resolver_errors_total",
			Help:      "Total number of requests that failed resolution due to an ambiguous or invalid catalogue match",
		},
		[]string{"reason"},
	)

	// TemplateFailuresTotal tracks sandbox/template substitution failures
	TemplateFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kolibri",
			Name:      "template_failures_total",
			Help:      "Total number of template substitutions that fell back to the literal token because the sandbox evaluation failed",
		},
	)

	// StubsTotal tracks the number of stubs currently loaded, by scope
	StubsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kolibri",
			Name:      "stubs_total",
			Help:      "Number of stubs currently loaded, by scope",
		},
		[]string{"scope"},
	)

	// StatesTotal tracks the current number of records in the state store
	StatesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kolibri",
			Name:      "states_total",
			Help:      "Current number of records in the state store",
		},
	)
)

// RecordRequest records a request to the execution endpoint.
func RecordRequest(method string) {
	RequestsTotal.WithLabelValues(method).Inc()
}

// RecordResponseDuration records the time taken to resolve and render a response.
func RecordResponseDuration(method string, seconds float64) {
	ResponseDuration.WithLabelValues(method).Observe(seconds)
}

// RecordNoMatch records a request for which the resolver found no stub.
func RecordNoMatch(method string) {
	NoMatchTotal.WithLabelValues(method).Inc()
}

// RecordResolverError records a fatal resolution failure, keyed by its
// uniqueness-invariant reason string.
func RecordResolverError(reason string) {
	ResolverErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordTemplateFailure records a sandbox evaluation failure during templating.
func RecordTemplateFailure() {
	TemplateFailuresTotal.Inc()
}

// SetStubsCount sets the number of loaded stubs for scope.
func SetStubsCount(scope string, count int) {
	StubsTotal.WithLabelValues(scope).Set(float64(count))
}

// SetStatesCount sets the current number of state records.
func SetStatesCount(count int) {
	StatesTotal.Set(float64(count))
}
