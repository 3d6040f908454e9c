package registration

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration wizard.
type Metrics struct {
	DraftsStarted     prometheus.Counter
	StepAdvances      *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	SubmitDuration    prometheus.Histogram
	DocumentsUploaded prometheus.Counter
}

// NewMetrics registers the registration metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DraftsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "school_erp_registration_drafts_started_total",
			Help: "Total number of registration drafts started",
		}),
		StepAdvances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "school_erp_registration_step_advances_total",
			Help: "Step advance attempts by step and result (advanced|blocked)",
		}, []string{"step", "result"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "school_erp_registration_submissions_total",
			Help: "Submissions by outcome (succeeded|failed|invalid)",
		}, []string{"outcome"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "school_erp_registration_submit_duration_seconds",
			Help:    "Duration of calls to the student backend",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DocumentsUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "school_erp_registration_documents_uploaded_total",
			Help: "Total number of documents uploaded",
		}),
	}
}

func (m *Metrics) IncrementDraftsStarted() {
	m.DraftsStarted.Inc()
}

func (m *Metrics) IncrementStepAdvance(step int, advanced bool) {
	result := "blocked"
	if advanced {
		result = "advanced"
	}
	m.StepAdvances.WithLabelValues(stepLabel(step), result).Inc()
}

func (m *Metrics) IncrementSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveSubmit records the duration of a backend call started at start.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementDocumentsUploaded() {
	m.DocumentsUploaded.Inc()
}

func stepLabel(step int) string {
	if step < FirstStep || step > LastStep {
		return "unknown"
	}
	return strconv.Itoa(step)
}
