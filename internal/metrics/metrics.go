// Package metrics provides Prometheus metric collection for the
// coordinated skill operations and the reconciler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metric-recording interface used by the services and
// reconcile packages.
type Recorder interface {
	RecordSkillMutation(op, outcome string)
	RecordPartialWrite(op string)
	RecordRepair(kind string, repaired bool)
}

// Collector implements Recorder on a Prometheus registry.
type Collector struct {
	skillMutations *prometheus.CounterVec
	partialWrites  *prometheus.CounterVec
	repairs        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		skillMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skilltracker_skill_mutations_total",
			Help: "Coordinated skill mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		partialWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skilltracker_partial_writes_total",
			Help: "Two-phase operations that left the stores diverged.",
		}, []string{"op"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skilltracker_reconcile_repairs_total",
			Help: "Reconciler repair attempts by divergence kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(c.skillMutations, c.partialWrites, c.repairs)
	return c
}

// RecordSkillMutation counts one coordinated mutation attempt.
func (c *Collector) RecordSkillMutation(op, outcome string) {
	c.skillMutations.WithLabelValues(op, outcome).Inc()
}

// RecordPartialWrite counts one surfaced partial write.
func (c *Collector) RecordPartialWrite(op string) {
	c.partialWrites.WithLabelValues(op).Inc()
}

// RecordRepair counts one reconciler repair attempt.
func (c *Collector) RecordRepair(kind string, repaired bool) {
	outcome := "repaired"
	if !repaired {
		outcome = "failed"
	}
	c.repairs.WithLabelValues(kind, outcome).Inc()
}
