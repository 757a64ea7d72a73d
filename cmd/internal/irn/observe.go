package irn

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is a lifecycle notification emitted by the Service.
type Event struct {
	Kind          string    `json:"kind"` // irn.generated | irn.status_changed | irn.sweep
	IRN           string    `json:"irn,omitempty"`
	IntegrationID string    `json:"integration_id,omitempty"`
	Status        Status    `json:"status,omitempty"`
	Count         int64     `json:"count,omitempty"` // sweep events only
	At            time.Time `json:"at"`
}

// Publisher receives lifecycle events. Implementations must not block;
// delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Instrumentation holds the Prometheus collectors for the IRN core.
type Instrumentation struct {
	Generated    prometheus.Counter
	BatchFailed  prometheus.Counter
	Transitions  *prometheus.CounterVec
	SweepExpired prometheus.Counter
}

// NewInstrumentation builds and registers the IRN collectors.
func NewInstrumentation(reg prometheus.Registerer) *Instrumentation {
	inst := &Instrumentation{
		Generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firsgate_irn_generated_total",
			Help: "IRN records generated (single and batch).",
		}),
		BatchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firsgate_irn_batch_failed_total",
			Help: "Per-item failures across batch generation requests.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firsgate_irn_transitions_total",
			Help: "IRN status transitions by target status.",
		}, []string{"status"}),
		SweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firsgate_irn_sweep_expired_total",
			Help: "Records flipped to expired by the sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(inst.Generated, inst.BatchFailed, inst.Transitions, inst.SweepExpired)
	}
	return inst
}

func (i *Instrumentation) generated(n int) {
	if i == nil {
		return
	}
	i.Generated.Add(float64(n))
}

func (i *Instrumentation) batchFailed(n int) {
	if i == nil {
		return
	}
	i.BatchFailed.Add(float64(n))
}

func (i *Instrumentation) transition(status Status) {
	if i == nil {
		return
	}
	i.Transitions.WithLabelValues(string(status)).Inc()
}

func (i *Instrumentation) swept(n int64) {
	if i == nil {
		return
	}
	i.SweepExpired.Add(float64(n))
}
