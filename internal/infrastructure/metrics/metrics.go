package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/workflow"
)

type collectors struct {
	transitions *prometheus.CounterVec
	denials     *prometheus.CounterVec
	conflicts   prometheus.Counter
	effects     *prometheus.CounterVec
	reminders   *prometheus.CounterVec
}

var collectorsSingleton = sync.OnceValue(func() *collectors {
	return &collectors{
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoice_workflow",
			Name:      "transitions_total",
			Help:      "Total number of committed status transitions.",
		}, []string{"family", "from", "to"}),
		denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoice_workflow",
			Name:      "transition_denials_total",
			Help:      "Total number of transitions rejected by the guard.",
		}, []string{"reason"}),
		conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "invoice_workflow",
			Name:      "transition_conflicts_total",
			Help:      "Total number of transitions that lost a concurrent update.",
		}),
		effects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoice_workflow",
			Name:      "side_effects_total",
			Help:      "Total number of side effects by outcome.",
		}, []string{"effect", "result"}),
		reminders: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoice_workflow",
			Name:      "sla_reminders_total",
			Help:      "Total number of SLA reminders by outcome.",
		}, []string{"result"}),
	}
})

// Recorder exports engine and dispatcher outcomes to Prometheus
type Recorder struct {
	c *collectors
}

// NewRecorder returns a recorder bound to the process-wide collectors
func NewRecorder() *Recorder {
	return &Recorder{c: collectorsSingleton()}
}

func (r *Recorder) TransitionCommitted(family, from, to string) {
	r.c.transitions.WithLabelValues(family, from, to).Inc()
}

func (r *Recorder) TransitionDenied(reason string) {
	r.c.denials.WithLabelValues(reason).Inc()
}

func (r *Recorder) TransitionConflict() {
	r.c.conflicts.Inc()
}

func (r *Recorder) SideEffect(effect, result string) {
	r.c.effects.WithLabelValues(effect, result).Inc()
}

// RemindersSent records the outcome counts of one reminder run
func (r *Recorder) RemindersSent(sent, skipped, failed int) {
	r.c.reminders.WithLabelValues("sent").Add(float64(sent))
	r.c.reminders.WithLabelValues("skipped").Add(float64(skipped))
	r.c.reminders.WithLabelValues("failed").Add(float64(failed))
}

var (
	_ workflow.Recorder   = (*Recorder)(nil)
	_ dispatcher.Recorder = (*Recorder)(nil)
)
