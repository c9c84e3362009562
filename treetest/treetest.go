// Package treetest holds fixtures and a conformance suite that every
// tree.Store implementation must pass.
package treetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree"
)

// State is a full dump of a store, used to compare before and after an
// operation that must not change anything.
type State struct {
	Nodes []tree.Node
	Rows  []tree.ClosureRow
}

// Snapshot reads every node, deleted ones included, and every closure row.
func Snapshot(t testing.TB, q tree.Querier) State {
	t.Helper()
	ctx := context.Background()
	nodes, err := q.ListNodes(ctx, tree.NodeFilter{WithDeleted: true})
	require.NoError(t, err)
	rows, err := q.SelectClosure(ctx, tree.ClosureFilter{})
	require.NoError(t, err)
	return State{Nodes: nodes, Rows: rows}
}

// AssertInvariants fails t if the closure relation or any sibling group is
// out of shape.
func AssertInvariants(t testing.TB, q tree.Querier) {
	t.Helper()
	violations, err := tree.Verify(context.Background(), q)
	require.NoError(t, err)
	require.Empty(t, violations)
}

// SeedForest builds the reference forest used by the suite:
//
//	roots 1..9 at positions 0..8
//	9 -> 10 -> 11 -> 12
//	9 -> 13, 14, 15
//
// so that the children of 9 read [10@0 13@1 14@2 15@3].
func SeedForest(t testing.TB, e *tree.Engine) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= 9; i++ {
		_, err := e.Create(ctx, &tree.Node{ID: fmt.Sprint(i)}, nil)
		require.NoError(t, err)
	}
	for _, link := range [][2]string{{"10", "9"}, {"11", "10"}, {"12", "11"}, {"13", "9"}, {"14", "9"}, {"15", "9"}} {
		_, err := e.Create(ctx, &tree.Node{ID: link[0], ParentID: tree.Ptr(link[1])}, nil)
		require.NoError(t, err)
	}
}

// Group lists the live members of a sibling group as "id@position".
func Group(t testing.TB, e *tree.Engine, parent *string) []string {
	t.Helper()
	nodes, err := e.Children(context.Background(), parent)
	require.NoError(t, err)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, fmt.Sprintf("%s@%d", n.ID, n.Position))
	}
	return out
}

// Lineage lists the ancestors of id, nearest first.
func Lineage(t testing.TB, e *tree.Engine, id string) []string {
	t.Helper()
	rows, err := e.Ancestors(context.Background(), id, false)
	require.NoError(t, err)
	out := make([]string, 0, len(rows))
	for i, r := range rows {
		require.Equal(t, i+1, r.Depth, "ancestor %s of %s", r.Ancestor, id)
		out = append(out, r.Ancestor)
	}
	return out
}

// Roots is Group for the root group.
func Roots(t testing.TB, e *tree.Engine) []string {
	t.Helper()
	return Group(t, e, nil)
}
