package tree

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Violation kinds reported by Verify.
const (
	MissingRow    = "missing_closure_row"
	StrayRow      = "stray_closure_row"
	ParentCycle   = "parent_cycle"
	MissingParent = "missing_parent"
	PositionGap   = "position_gap"
)

// Violation is one broken invariant found by Verify.
type Violation struct {
	Kind   string `json:"kind"`
	NodeID string `json:"node_id"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s", v.Kind, v.NodeID, v.Detail)
}

// Verify recomputes the closure relation from parent links and checks it
// against the stored rows, then checks that every live sibling group is
// numbered 0..n-1. Soft-deleted nodes keep their rows, so they take part in
// the closure check but not in the position check.
//
// Verify reads the whole forest; run it inside InTx for a consistent view.
func Verify(ctx context.Context, q Querier) ([]Violation, error) {
	nodes, err := q.ListNodes(ctx, NodeFilter{WithDeleted: true})
	if err != nil {
		return nil, err
	}
	stored, err := q.SelectClosure(ctx, ClosureFilter{})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	var out []Violation
	want := make(map[ClosureRow]struct{})
	for i := range nodes {
		n := &nodes[i]
		seen := map[string]bool{n.ID: true}
		for cur, depth := n, 0; ; depth++ {
			want[ClosureRow{Ancestor: cur.ID, Descendant: n.ID, Depth: depth}] = struct{}{}
			if cur.ParentID == nil {
				break
			}
			next, ok := byID[*cur.ParentID]
			if !ok {
				out = append(out, Violation{MissingParent, n.ID, fmt.Sprintf("parent %s of %s does not exist", *cur.ParentID, cur.ID)})
				break
			}
			if seen[next.ID] {
				out = append(out, Violation{ParentCycle, n.ID, fmt.Sprintf("%s is its own ancestor", next.ID)})
				break
			}
			seen[next.ID] = true
			cur = next
		}
	}

	have := make(map[ClosureRow]struct{}, len(stored))
	for _, r := range stored {
		have[r] = struct{}{}
		if _, ok := want[r]; !ok {
			out = append(out, Violation{StrayRow, r.Descendant, fmt.Sprintf("(%s, %s, %d)", r.Ancestor, r.Descendant, r.Depth)})
		}
	}
	for r := range want {
		if _, ok := have[r]; !ok {
			out = append(out, Violation{MissingRow, r.Descendant, fmt.Sprintf("(%s, %s, %d)", r.Ancestor, r.Descendant, r.Depth)})
		}
	}

	type groupKey struct {
		root   bool
		parent string
	}
	groups := make(map[groupKey][]int)
	for _, n := range nodes {
		if n.Deleted() {
			continue
		}
		k := groupKey{root: n.ParentID == nil}
		if n.ParentID != nil {
			k.parent = *n.ParentID
		}
		groups[k] = append(groups[k], n.Position)
	}
	for k, positions := range groups {
		slices.Sort(positions)
		for i, p := range positions {
			if p != i {
				name := k.parent
				if k.root {
					name = "(root)"
				}
				out = append(out, Violation{PositionGap, name, fmt.Sprintf("positions %v", positions)})
				break
			}
		}
	}

	slices.SortFunc(out, func(a, b Violation) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.NodeID, b.NodeID), cmp.Compare(a.Detail, b.Detail))
	})
	return out, nil
}
