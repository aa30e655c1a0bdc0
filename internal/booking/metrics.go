package booking

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts booking engine decisions. A nil *Metrics records nothing.
type Metrics struct {
	actionsExecuted      *prometheus.CounterVec
	actionsDeduplicated  *prometheus.CounterVec
	confirmationsPending *prometheus.CounterVec
	prefilterDecisions   *prometheus.CounterVec
	calendarFailures     *prometheus.CounterVec
}

// NewMetrics creates the booking counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "actions_executed_total",
			Help:      "Booking actions executed, by action type",
		}, []string{"action"}),
		actionsDeduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "actions_deduplicated_total",
			Help:      "Booking actions suppressed as repeats of a recently completed action",
		}, []string{"action"}),
		confirmationsPending: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "confirmations_pending_total",
			Help:      "Turns where an action waited for more client confirmations",
		}, []string{"action"}),
		prefilterDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "prefilter_decisions_total",
			Help:      "Pre-filter outcomes: analyze, skip, classifier_error",
		}, []string{"result"}),
		calendarFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "calendar_failures_total",
			Help:      "Failed calendar operations, by operation",
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.actionsExecuted,
			m.actionsDeduplicated,
			m.confirmationsPending,
			m.prefilterDecisions,
			m.calendarFailures,
		)
	}
	return m
}

func (m *Metrics) ActionExecuted(i Intent) {
	if m != nil {
		m.actionsExecuted.WithLabelValues(string(i)).Inc()
	}
}

func (m *Metrics) ActionDeduplicated(i Intent) {
	if m != nil {
		m.actionsDeduplicated.WithLabelValues(string(i)).Inc()
	}
}

func (m *Metrics) ConfirmationPending(i Intent) {
	if m != nil {
		m.confirmationsPending.WithLabelValues(string(i)).Inc()
	}
}

func (m *Metrics) PrefilterDecision(result string) {
	if m != nil {
		m.prefilterDecisions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) CalendarFailure(operation string) {
	if m != nil {
		m.calendarFailures.WithLabelValues(operation).Inc()
	}
}
