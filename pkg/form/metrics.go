package form

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	validationSync  = "sync"
	validationAsync = "async"
	validationGroup = "group"
	validationArray = "array"

	outcomeApplied    = "applied"
	outcomeSuperseded = "superseded"
	outcomeFailed     = "failed"

	submitAccepted = "accepted"
	submitPending  = "pending"
	submitRejected = "rejected"
)

// Metrics counts validator runs, async outcomes, and submit attempts. A
// nil *Metrics records nothing.
type Metrics struct {
	validations  *prometheus.CounterVec
	asyncResults *prometheus.CounterVec
	submissions  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// skips registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formstate",
			Name:      "validations_total",
			Help:      "Validator passes by kind (sync, async, group, array).",
		}, []string{"kind"}),
		asyncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formstate",
			Name:      "async_results_total",
			Help:      "Async validation results by outcome.",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formstate",
			Name:      "submissions_total",
			Help:      "Submit attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.validations, m.asyncResults, m.submissions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("form: register metrics: %w", err)
		}
	}
	return m, nil
}

// Validations exposes the validator run counter.
func (m *Metrics) Validations() *prometheus.CounterVec { return m.validations }

// AsyncResults exposes the async outcome counter.
func (m *Metrics) AsyncResults() *prometheus.CounterVec { return m.asyncResults }

// Submissions exposes the submit outcome counter.
func (m *Metrics) Submissions() *prometheus.CounterVec { return m.submissions }

func (m *Metrics) validation(kind string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(kind).Inc()
}

func (m *Metrics) asyncResult(outcome string) {
	if m == nil {
		return
	}
	m.asyncResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
