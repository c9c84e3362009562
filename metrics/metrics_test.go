package metrics

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeRejected, Outcome(fmt.Errorf("%w: cycle", tree.ErrInvalidOperation)))
	assert.Equal(t, OutcomeRejected, Outcome(tree.ErrNodeNotFound))
	assert.Equal(t, OutcomeRejected, Outcome(tree.ErrNodeExists))
	assert.Equal(t, OutcomeError, Outcome(errors.New("connection reset")))
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveOp("move", time.Millisecond, nil)
	c.ObserveOp("move", time.Millisecond, tree.ErrInvalidOperation)
	c.ObserveOp("create", 2*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("move", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("move", OutcomeRejected)))

	want := `
# HELP tree_operations_total Engine operations by name and outcome
# TYPE tree_operations_total counter
tree_operations_total{op="create",outcome="ok"} 1
tree_operations_total{op="move",outcome="ok"} 1
tree_operations_total{op="move",outcome="rejected"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "tree_operations_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
