// Package metrics exports engine operations as Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/meikuraledutech/tree"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector implements tree.Observer.
type Collector struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ tree.Observer = (*Collector)(nil)

// New registers the tree metrics with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tree_operations_total",
			Help: "Engine operations by name and outcome",
		}, []string{"op", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tree_operation_duration_seconds",
			Help:    "Time from transaction start to commit or rollback",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
	}
}

// ObserveOp records one operation.
func (c *Collector) ObserveOp(op string, d time.Duration, err error) {
	c.ops.WithLabelValues(op, Outcome(err)).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// Outcome classifies an operation error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, tree.ErrInvalidOperation),
		errors.Is(err, tree.ErrNodeNotFound),
		errors.Is(err, tree.ErrNodeExists):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
