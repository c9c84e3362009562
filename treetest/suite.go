package treetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree"
)

// Clock is the fixed time the suite stamps soft deletes with.
var Clock = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

var errRollback = errors.New("rollback")

type env struct {
	ctx   context.Context
	store tree.Store
	e     *tree.Engine
}

type testCase struct {
	name    string
	promote bool
	run     func(t *testing.T, v env)
}

// RunSuite runs every scenario against a fresh store from newStore. newStore
// must return an empty store with the schema in place and register its own
// cleanup.
func RunSuite(t *testing.T, newStore func(t *testing.T) tree.Store) {
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			e := tree.NewEngine(s,
				tree.WithPromoteChildren(tc.promote),
				tree.WithClock(func() time.Time { return Clock }),
			)
			SeedForest(t, e)
			tc.run(t, env{ctx: context.Background(), store: s, e: e})
			AssertInvariants(t, s)
		})
	}
}

func seedRoots(ids ...string) []string {
	var out []string
	for i := 1; i <= 9; i++ {
		out = append(out, fmt.Sprint(i))
	}
	out = append(out, ids...)
	for i := range out {
		out[i] = fmt.Sprintf("%s@%d", out[i], i)
	}
	return out
}

var cases = []testCase{
	{
		name: "seed forest",
		run: func(t *testing.T, v env) {
			assert.Equal(t, seedRoots(), Roots(t, v.e))
			assert.Equal(t, []string{"10@0", "13@1", "14@2", "15@3"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"11", "10", "9"}, Lineage(t, v.e, "12"))

			depth, err := v.e.Depth(v.ctx, "12")
			require.NoError(t, err)
			assert.Equal(t, 3, depth)

			rows, err := v.e.Descendants(v.ctx, "9", true)
			require.NoError(t, err)
			assert.Len(t, rows, 7)
			assert.Equal(t, tree.ClosureRow{Ancestor: "9", Descendant: "9", Depth: 0}, rows[0])
		},
	},
	{
		name: "move leaf under a cousin",
		run: func(t *testing.T, v env) {
			moved, err := v.e.MoveTo(v.ctx, "12", tree.Ptr("13"), tree.Ptr(0))
			require.NoError(t, err)
			require.NotNil(t, moved)
			assert.Equal(t, "13", *moved.ParentID)
			assert.Equal(t, 0, moved.Position)

			assert.Equal(t, []string{"13", "9"}, Lineage(t, v.e, "12"))
			depth, err := v.e.Depth(v.ctx, "12")
			require.NoError(t, err)
			assert.Equal(t, 2, depth)
			assert.Equal(t, []string{"12@0"}, Group(t, v.e, tree.Ptr("13")))
			assert.Empty(t, Group(t, v.e, tree.Ptr("11")))

			stored, err := v.e.Get(v.ctx, "12")
			require.NoError(t, err)
			assert.Equal(t, "13", *stored.ParentID)
		},
	},
	{
		name: "move subtree to another root",
		run: func(t *testing.T, v env) {
			_, err := v.e.MoveTo(v.ctx, "10", tree.Ptr("1"), nil)
			require.NoError(t, err)

			assert.Equal(t, []string{"11", "10", "1"}, Lineage(t, v.e, "12"))
			assert.Equal(t, []string{"10@0"}, Group(t, v.e, tree.Ptr("1")))
			assert.Equal(t, []string{"13@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))

			rows, err := v.e.Descendants(v.ctx, "9", false)
			require.NoError(t, err)
			var got []string
			for _, r := range rows {
				got = append(got, r.Descendant)
			}
			assert.ElementsMatch(t, []string{"13", "14", "15"}, got)
		},
	},
	{
		name: "move subtree to the root group",
		run: func(t *testing.T, v env) {
			_, err := v.e.MoveTo(v.ctx, "10", nil, nil)
			require.NoError(t, err)

			assert.Equal(t, seedRoots("10"), Roots(t, v.e))
			assert.Equal(t, []string{"11", "10"}, Lineage(t, v.e, "12"))
			assert.Equal(t, []string{"13@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "reorder within a group",
		run: func(t *testing.T, v env) {
			_, err := v.e.MoveTo(v.ctx, "15", tree.Ptr("9"), tree.Ptr(0))
			require.NoError(t, err)
			assert.Equal(t, []string{"15@0", "10@1", "13@2", "14@3"}, Group(t, v.e, tree.Ptr("9")))

			moved, err := v.e.MoveTo(v.ctx, "10", tree.Ptr("9"), tree.Ptr(99))
			require.NoError(t, err)
			assert.Equal(t, 3, moved.Position)
			assert.Equal(t, []string{"15@0", "13@1", "14@2", "10@3"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"11", "10", "9"}, Lineage(t, v.e, "12"))
		},
	},
	{
		name: "move to current place changes nothing",
		run: func(t *testing.T, v env) {
			before := Snapshot(t, v.store)

			n, err := v.e.MoveTo(v.ctx, "13", tree.Ptr("9"), tree.Ptr(1))
			require.NoError(t, err)
			assert.Equal(t, 1, n.Position)
			_, err = v.e.MoveTo(v.ctx, "1", nil, tree.Ptr(0))
			require.NoError(t, err)

			assert.Equal(t, before, Snapshot(t, v.store))
		},
	},
	{
		name: "move under a descendant is rejected",
		run: func(t *testing.T, v env) {
			before := Snapshot(t, v.store)

			_, err := v.e.MoveTo(v.ctx, "9", tree.Ptr("12"), nil)
			require.ErrorIs(t, err, tree.ErrInvalidOperation)
			_, err = v.e.MoveTo(v.ctx, "10", tree.Ptr("11"), tree.Ptr(0))
			require.ErrorIs(t, err, tree.ErrInvalidOperation)
			_, err = v.e.MoveTo(v.ctx, "9", tree.Ptr("9"), nil)
			require.ErrorIs(t, err, tree.ErrInvalidOperation)

			assert.Equal(t, before, Snapshot(t, v.store))
		},
	},
	{
		name: "move of a missing node is a no-op",
		run: func(t *testing.T, v env) {
			n, err := v.e.MoveTo(v.ctx, "nope", tree.Ptr("9"), nil)
			require.NoError(t, err)
			assert.Nil(t, n)
		},
	},
	{
		name: "move under a missing parent fails",
		run: func(t *testing.T, v env) {
			_, err := v.e.MoveTo(v.ctx, "13", tree.Ptr("nope"), nil)
			require.ErrorIs(t, err, tree.ErrNodeNotFound)
		},
	},
	{
		name: "create clamps positions",
		run: func(t *testing.T, v env) {
			_, err := v.e.Create(v.ctx, &tree.Node{ID: "A"}, tree.Ptr(-5))
			require.NoError(t, err)
			_, err = v.e.Create(v.ctx, &tree.Node{ID: "B", ParentID: tree.Ptr("13")}, tree.Ptr(7))
			require.NoError(t, err)

			roots := Roots(t, v.e)
			assert.Equal(t, "A@0", roots[0])
			assert.Equal(t, "9@9", roots[9])
			assert.Equal(t, []string{"B@0"}, Group(t, v.e, tree.Ptr("13")))
			assert.Equal(t, []string{"13", "9"}, Lineage(t, v.e, "B"))
		},
	},
	{
		name: "create assigns an id",
		run: func(t *testing.T, v env) {
			n, err := v.e.Create(v.ctx, &tree.Node{ParentID: tree.Ptr("14")}, nil)
			require.NoError(t, err)
			assert.NotEmpty(t, n.ID)
			assert.Equal(t, []string{"14", "9"}, Lineage(t, v.e, n.ID))
		},
	},
	{
		name: "create rejects duplicates and missing parents",
		run: func(t *testing.T, v env) {
			before := Snapshot(t, v.store)

			_, err := v.e.Create(v.ctx, &tree.Node{ID: "13", ParentID: tree.Ptr("1")}, nil)
			require.ErrorIs(t, err, tree.ErrNodeExists)
			_, err = v.e.Create(v.ctx, &tree.Node{ID: "Z", ParentID: tree.Ptr("nope")}, nil)
			require.ErrorIs(t, err, tree.ErrNodeNotFound)
			_, err = v.e.Create(v.ctx, &tree.Node{ID: "Z", ParentID: tree.Ptr("Z")}, nil)
			require.ErrorIs(t, err, tree.ErrInvalidOperation)

			assert.Equal(t, before, Snapshot(t, v.store))
		},
	},
	{
		name: "add children at a position",
		run: func(t *testing.T, v env) {
			placed, err := v.e.AddChildren(v.ctx, tree.Ptr("9"), []*tree.Node{{ID: "X"}, {ID: "Y"}}, tree.Ptr(1))
			require.NoError(t, err)
			require.Len(t, placed, 2)

			assert.Equal(t, []string{"10@0", "X@1", "Y@2", "13@3", "14@4", "15@5"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"9"}, Lineage(t, v.e, "Y"))
		},
	},
	{
		name: "add children appends and moves existing nodes",
		run: func(t *testing.T, v env) {
			_, err := v.e.AddChildren(v.ctx, tree.Ptr("1"), []*tree.Node{{ID: "14"}, {ID: "N"}, {ID: "11"}}, nil)
			require.NoError(t, err)

			assert.Equal(t, []string{"14@0", "N@1", "11@2"}, Group(t, v.e, tree.Ptr("1")))
			assert.Equal(t, []string{"10@0", "13@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
			assert.Empty(t, Group(t, v.e, tree.Ptr("10")))
			assert.Equal(t, []string{"11", "1"}, Lineage(t, v.e, "12"))
		},
	},
	{
		name: "add children is all or nothing",
		run: func(t *testing.T, v env) {
			before := Snapshot(t, v.store)

			_, err := v.e.AddChildren(v.ctx, tree.Ptr("12"), []*tree.Node{{ID: "P"}, {ID: "10"}}, tree.Ptr(0))
			require.ErrorIs(t, err, tree.ErrInvalidOperation)

			assert.Equal(t, before, Snapshot(t, v.store))
			n, err := v.e.Get(v.ctx, "P")
			require.NoError(t, err)
			assert.Nil(t, n)
		},
	},
	{
		name: "add children regroups members of the target group",
		run: func(t *testing.T, v env) {
			placed, err := v.e.AddChildren(v.ctx, tree.Ptr("9"), []*tree.Node{{ID: "10"}, {ID: "13"}}, tree.Ptr(2))
			require.NoError(t, err)
			require.Len(t, placed, 2)
			assert.Equal(t, 2, placed[0].Position)
			assert.Equal(t, 3, placed[1].Position)

			assert.Equal(t, []string{"14@0", "15@1", "10@2", "13@3"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"11", "10", "9"}, Lineage(t, v.e, "12"))
		},
	},
	{
		name: "add children mixes members and newcomers",
		run: func(t *testing.T, v env) {
			_, err := v.e.AddChildren(v.ctx, tree.Ptr("9"), []*tree.Node{{ID: "15"}, {ID: "N"}, {ID: "10"}}, tree.Ptr(0))
			require.NoError(t, err)
			assert.Equal(t, []string{"15@0", "N@1", "10@2", "13@3", "14@4"}, Group(t, v.e, tree.Ptr("9")))

			_, err = v.e.AddChildren(v.ctx, tree.Ptr("9"), []*tree.Node{{ID: "13"}, {ID: "15"}}, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"N@0", "10@1", "14@2", "13@3", "15@4"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "add forest places nested groups",
		run: func(t *testing.T, v env) {
			forest := []*tree.TreeNode{{
				Node: tree.Node{ID: "A"},
				Children: []*tree.TreeNode{
					{Node: tree.Node{ID: "B"}},
					{Node: tree.Node{ID: "14"}},
				},
			}}
			placed, err := v.e.AddForest(v.ctx, tree.Ptr("1"), forest)
			require.NoError(t, err)
			require.Len(t, placed, 3)
			assert.Equal(t, "A", placed[0].ID)

			assert.Equal(t, []string{"A@0"}, Group(t, v.e, tree.Ptr("1")))
			assert.Equal(t, []string{"B@0", "14@1"}, Group(t, v.e, tree.Ptr("A")))
			assert.Equal(t, []string{"A", "1"}, Lineage(t, v.e, "14"))
			assert.Equal(t, []string{"10@0", "13@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "add forest is all or nothing",
		run: func(t *testing.T, v env) {
			before := Snapshot(t, v.store)

			forest := []*tree.TreeNode{{
				Node:     tree.Node{ID: "P"},
				Children: []*tree.TreeNode{{Node: tree.Node{ID: "9"}}},
			}}
			_, err := v.e.AddForest(v.ctx, tree.Ptr("12"), forest)
			require.ErrorIs(t, err, tree.ErrInvalidOperation)

			assert.Equal(t, before, Snapshot(t, v.store))
		},
	},
	{
		name: "add child moves an existing node",
		run: func(t *testing.T, v env) {
			n, err := v.e.AddChild(v.ctx, tree.Ptr("1"), &tree.Node{ID: "14"}, nil)
			require.NoError(t, err)
			assert.Equal(t, "1", *n.ParentID)

			assert.Equal(t, []string{"14@0"}, Group(t, v.e, tree.Ptr("1")))
			assert.Equal(t, []string{"10@0", "13@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "add child restores a soft-deleted node",
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "13", false))

			n, err := v.e.AddChild(v.ctx, tree.Ptr("1"), &tree.Node{ID: "13"}, nil)
			require.NoError(t, err)
			assert.Nil(t, n.DeletedAt)
			assert.Equal(t, "1", *n.ParentID)

			assert.Equal(t, []string{"13@0"}, Group(t, v.e, tree.Ptr("1")))
			assert.Equal(t, []string{"10@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"1"}, Lineage(t, v.e, "13"))
		},
	},
	{
		name: "group of a soft-deleted parent can be reordered",
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "9", false))

			moved, err := v.e.MoveTo(v.ctx, "15", tree.Ptr("9"), tree.Ptr(0))
			require.NoError(t, err)
			assert.Equal(t, 0, moved.Position)
			assert.Equal(t, []string{"15@0", "10@1", "13@2", "14@3"}, Group(t, v.e, tree.Ptr("9")))

			_, err = v.e.MoveTo(v.ctx, "1", tree.Ptr("9"), nil)
			require.ErrorIs(t, err, tree.ErrNodeNotFound)
		},
	},
	{
		name: "add sibling before the reference",
		run: func(t *testing.T, v env) {
			ref, err := v.e.Get(v.ctx, "13")
			require.NoError(t, err)
			require.Equal(t, 1, ref.Position)

			_, err = v.e.AddSibling(v.ctx, ref, &tree.Node{ID: "S"}, tree.Ptr(0))
			require.NoError(t, err)

			assert.Equal(t, 2, ref.Position)
			assert.Equal(t, []string{"S@0", "10@1", "13@2", "14@3", "15@4"}, Group(t, v.e, tree.Ptr("9")))

			_, err = v.e.AddSibling(v.ctx, &tree.Node{ID: "nope"}, &tree.Node{ID: "T"}, nil)
			require.ErrorIs(t, err, tree.ErrNodeNotFound)
		},
	},
	{
		name: "add sibling after the reference",
		run: func(t *testing.T, v env) {
			ref, err := v.e.Get(v.ctx, "13")
			require.NoError(t, err)

			_, err = v.e.AddSibling(v.ctx, ref, &tree.Node{ID: "S"}, nil)
			require.NoError(t, err)

			assert.Equal(t, 1, ref.Position)
			assert.Equal(t, []string{"10@0", "13@1", "14@2", "15@3", "S@4"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "remove children soft",
		run: func(t *testing.T, v env) {
			removed, err := v.e.RemoveChildren(v.ctx, tree.Ptr("9"), 0, tree.Ptr(2), false)
			require.NoError(t, err)
			require.Len(t, removed, 3)

			assert.Equal(t, []string{"15@0"}, Group(t, v.e, tree.Ptr("9")))
			for _, id := range []string{"10", "13", "14"} {
				n, err := v.e.Get(v.ctx, id)
				require.NoError(t, err)
				require.True(t, n.Deleted(), id)
				assert.True(t, n.DeletedAt.Equal(Clock))
			}
			// Soft delete keeps the lineage below a removed node.
			assert.Equal(t, []string{"11", "10", "9"}, Lineage(t, v.e, "12"))
		},
	},
	{
		name: "remove children hard",
		run: func(t *testing.T, v env) {
			_, err := v.e.RemoveChildren(v.ctx, tree.Ptr("9"), 0, tree.Ptr(2), true)
			require.NoError(t, err)

			assert.Equal(t, []string{"15@0"}, Group(t, v.e, tree.Ptr("9")))
			state := Snapshot(t, v.store)
			gone := []string{"10", "11", "12", "13", "14"}
			for _, n := range state.Nodes {
				assert.NotContains(t, gone, n.ID)
			}
			for _, r := range state.Rows {
				assert.NotContains(t, gone, r.Ancestor)
				assert.NotContains(t, gone, r.Descendant)
			}
		},
	},
	{
		name: "remove children to the end",
		run: func(t *testing.T, v env) {
			removed, err := v.e.RemoveChildren(v.ctx, nil, 7, nil, true)
			require.NoError(t, err)
			require.Len(t, removed, 2)

			assert.Equal(t, seedRoots()[:7], Roots(t, v.e))
			n, err := v.e.Get(v.ctx, "12")
			require.NoError(t, err)
			assert.Nil(t, n)
		},
	},
	{
		name:    "remove children promotes grandchildren",
		promote: true,
		run: func(t *testing.T, v env) {
			_, err := v.e.RemoveChildren(v.ctx, tree.Ptr("9"), 0, tree.Ptr(1), true)
			require.NoError(t, err)

			assert.Equal(t, []string{"11@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"11", "9"}, Lineage(t, v.e, "12"))
		},
	},
	{
		name: "remove child by position",
		run: func(t *testing.T, v env) {
			n, err := v.e.RemoveChild(v.ctx, tree.Ptr("9"), 1, true)
			require.NoError(t, err)
			require.NotNil(t, n)
			assert.Equal(t, "13", n.ID)
			assert.Equal(t, []string{"10@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))

			n, err = v.e.RemoveChild(v.ctx, tree.Ptr("9"), 42, true)
			require.NoError(t, err)
			assert.Nil(t, n)
		},
	},
	{
		name: "hard delete removes the subtree",
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "10", true))

			assert.Equal(t, []string{"13@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
			for _, id := range []string{"10", "11", "12"} {
				n, err := v.e.Get(v.ctx, id)
				require.NoError(t, err)
				assert.Nil(t, n, id)
			}
			require.NoError(t, v.e.Delete(v.ctx, "10", true))
		},
	},
	{
		name:    "hard delete promotes children",
		promote: true,
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "10", true))

			assert.Equal(t, []string{"11@0", "13@1", "14@2", "15@3"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"11", "9"}, Lineage(t, v.e, "12"))
			n, err := v.e.Get(v.ctx, "10")
			require.NoError(t, err)
			assert.Nil(t, n)
		},
	},
	{
		name:    "soft delete promotes children",
		promote: true,
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "9", false))

			roots := seedRoots()[:8]
			roots = append(roots, "10@8", "13@9", "14@10", "15@11")
			assert.Equal(t, roots, Roots(t, v.e))
			assert.Equal(t, []string{"11", "10"}, Lineage(t, v.e, "12"))

			n, err := v.e.Get(v.ctx, "9")
			require.NoError(t, err)
			assert.True(t, n.Deleted())
		},
	},
	{
		name: "soft delete and restore",
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "13", false))
			assert.Equal(t, []string{"10@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))

			rows, err := v.e.Ancestors(v.ctx, "13", true)
			require.NoError(t, err)
			assert.Len(t, rows, 2)

			_, err = v.e.MoveTo(v.ctx, "13", tree.Ptr("1"), nil)
			require.NoError(t, err)
			assert.Empty(t, Group(t, v.e, tree.Ptr("1")))

			n, err := v.e.Restore(v.ctx, "13")
			require.NoError(t, err)
			assert.False(t, n.Deleted())
			assert.Equal(t, 3, n.Position)
			assert.Equal(t, []string{"10@0", "14@1", "15@2", "13@3"}, Group(t, v.e, tree.Ptr("9")))

			n, err = v.e.Restore(v.ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, n)
		},
	},
	{
		name: "hard delete purges a soft-deleted node",
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "13", false))
			require.NoError(t, v.e.Delete(v.ctx, "13", true))

			n, err := v.e.Get(v.ctx, "13")
			require.NoError(t, err)
			assert.Nil(t, n)
			assert.Equal(t, []string{"10@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "soft delete hides a subtree from the tree view",
		run: func(t *testing.T, v env) {
			require.NoError(t, v.e.Delete(v.ctx, "10", false))

			forest, err := v.e.Tree(v.ctx, nil)
			require.NoError(t, err)
			require.Len(t, forest, 9)
			nine := forest[8]
			var kids []string
			for _, c := range nine.Children {
				kids = append(kids, c.ID)
			}
			assert.Equal(t, []string{"13", "14", "15"}, kids)
		},
	},
	{
		name: "delete subtree hard with self",
		run: func(t *testing.T, v env) {
			count, err := v.e.DeleteSubtree(v.ctx, "10", true, true)
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			rows, err := v.e.Descendants(v.ctx, "10", true)
			require.NoError(t, err)
			assert.Empty(t, rows)
			for _, r := range Snapshot(t, v.store).Rows {
				assert.False(t, slices.Contains([]string{"10", "11", "12"}, r.Descendant), r)
				assert.False(t, slices.Contains([]string{"10", "11", "12"}, r.Ancestor), r)
			}
			assert.Equal(t, []string{"13@0", "14@1", "15@2"}, Group(t, v.e, tree.Ptr("9")))
		},
	},
	{
		name: "delete subtree soft without self",
		run: func(t *testing.T, v env) {
			count, err := v.e.DeleteSubtree(v.ctx, "9", false, false)
			require.NoError(t, err)
			assert.Equal(t, 6, count)

			assert.Empty(t, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, seedRoots(), Roots(t, v.e))
			n, err := v.e.Get(v.ctx, "12")
			require.NoError(t, err)
			assert.True(t, n.Deleted())

			rows, err := v.e.Ancestors(v.ctx, "12", true)
			require.NoError(t, err)
			assert.Len(t, rows, 4)

			count, err = v.e.DeleteSubtree(v.ctx, "nope", true, true)
			require.NoError(t, err)
			assert.Zero(t, count)
		},
	},
	{
		name: "tree view of a subtree",
		run: func(t *testing.T, v env) {
			forest, err := v.e.Tree(v.ctx, tree.Ptr("10"))
			require.NoError(t, err)
			require.Len(t, forest, 1)
			assert.Equal(t, "10", forest[0].ID)
			require.Len(t, forest[0].Children, 1)
			require.Len(t, forest[0].Children[0].Children, 1)
			assert.Equal(t, "12", forest[0].Children[0].Children[0].ID)

			forest, err = v.e.Tree(v.ctx, tree.Ptr("nope"))
			require.NoError(t, err)
			assert.Empty(t, forest)
		},
	},
	{
		name: "depth of a missing node",
		run: func(t *testing.T, v env) {
			_, err := v.e.Depth(v.ctx, "nope")
			require.ErrorIs(t, err, tree.ErrNodeNotFound)
		},
	},
	{
		name: "save hooks keep the tree in step",
		run: func(t *testing.T, v env) {
			err := v.store.InTx(v.ctx, func(q tree.Querier) error {
				n := &tree.Node{ID: "H", ParentID: tree.Ptr("9"), Position: 1}
				changed, err := v.e.BeforeSave(v.ctx, q, nil, n)
				if err != nil {
					return err
				}
				require.True(t, changed)
				if err := q.InsertNode(v.ctx, n); err != nil {
					return err
				}
				return v.e.AfterCreate(v.ctx, q, n)
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"10@0", "H@1", "13@2", "14@3", "15@4"}, Group(t, v.e, tree.Ptr("9")))

			err = v.store.InTx(v.ctx, func(q tree.Querier) error {
				before, err := q.GetNode(v.ctx, "H")
				if err != nil {
					return err
				}
				after := *before
				after.ParentID = tree.Ptr("1")
				after.Position = -1
				changed, err := v.e.BeforeSave(v.ctx, q, before, &after)
				if err != nil || !changed {
					return err
				}
				if err := q.UpdateNode(v.ctx, &after); err != nil {
					return err
				}
				return v.e.AfterSave(v.ctx, q, *before, after)
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"H@0"}, Group(t, v.e, tree.Ptr("1")))
			assert.Equal(t, []string{"10@0", "13@1", "14@2", "15@3"}, Group(t, v.e, tree.Ptr("9")))
			assert.Equal(t, []string{"1"}, Lineage(t, v.e, "H"))
		},
	},
	{
		name: "before save rejects a cycle",
		run: func(t *testing.T, v env) {
			err := v.store.InTx(v.ctx, func(q tree.Querier) error {
				before, err := q.GetNode(v.ctx, "10")
				if err != nil {
					return err
				}
				after := *before
				after.ParentID = tree.Ptr("12")
				_, err = v.e.BeforeSave(v.ctx, q, before, &after)
				return err
			})
			require.ErrorIs(t, err, tree.ErrInvalidOperation)
		},
	},
	{
		name: "verify reports a broken closure",
		run: func(t *testing.T, v env) {
			err := v.store.InTx(v.ctx, func(q tree.Querier) error {
				if err := q.DeleteClosure(v.ctx, []string{"9"}, []string{"12"}); err != nil {
					return err
				}
				if err := q.ShiftPositions(v.ctx, tree.Shift{Parent: tree.Ptr("9"), From: 3, To: -1, Delta: 5}); err != nil {
					return err
				}
				violations, err := tree.Verify(v.ctx, q)
				if err != nil {
					return err
				}
				require.Len(t, violations, 2)
				assert.Equal(t, tree.MissingRow, violations[0].Kind)
				assert.Equal(t, "12", violations[0].NodeID)
				assert.Equal(t, tree.PositionGap, violations[1].Kind)
				assert.Equal(t, "9", violations[1].NodeID)
				return errRollback
			})
			require.ErrorIs(t, err, errRollback)
		},
	},
}
