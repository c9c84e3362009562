package tree

import (
	"context"
	"fmt"
)

// Closure owns the closure relation. All of its writes are set-based: each
// operation reads the rows it needs and issues a single bulk insert or delete,
// never a recursive walk.
//
// Closure performs no cycle detection. Callers must not reattach a node under
// one of its own descendants.
type Closure struct {
	q Querier
}

// NewClosure binds the closure primitives to q, usually a transaction.
func NewClosure(q Querier) *Closure {
	return &Closure{q: q}
}

// InsertLeaf adds the rows of a brand-new node. ancestorID is its parent, or
// descendantID itself when the node is a root. The node must not have any
// closure rows yet.
func (c *Closure) InsertLeaf(ctx context.Context, ancestorID, descendantID string) error {
	rows := []ClosureRow{{Ancestor: descendantID, Descendant: descendantID}}
	if ancestorID != descendantID {
		chain, err := c.q.SelectClosure(ctx, ClosureFilter{Descendant: ancestorID})
		if err != nil {
			return err
		}
		if len(chain) == 0 {
			return fmt.Errorf("%w: parent %s has no closure rows", ErrNodeNotFound, ancestorID)
		}
		for _, r := range chain {
			rows = append(rows, ClosureRow{Ancestor: r.Ancestor, Descendant: descendantID, Depth: r.Depth + 1})
		}
	}
	return c.q.InsertClosure(ctx, rows)
}

// UnbindSubtree detaches the subtree rooted at nodeID from everything above
// it. Rows inside the subtree are left alone.
func (c *Closure) UnbindSubtree(ctx context.Context, nodeID string) error {
	above, err := c.q.SelectClosure(ctx, ClosureFilter{Descendant: nodeID, MinDepth: 1})
	if err != nil {
		return err
	}
	if len(above) == 0 {
		return nil
	}
	below, err := c.q.SelectClosure(ctx, ClosureFilter{Ancestor: nodeID})
	if err != nil {
		return err
	}
	return c.q.DeleteClosure(ctx,
		ids(above, func(r ClosureRow) string { return r.Ancestor }),
		ids(below, func(r ClosureRow) string { return r.Descendant }),
	)
}

// ReattachSubtree links every node of the subtree rooted at nodeID to every
// ancestor of newAncestorID, inclusive. It expects the subtree to be unbound.
func (c *Closure) ReattachSubtree(ctx context.Context, nodeID, newAncestorID string) error {
	above, err := c.q.SelectClosure(ctx, ClosureFilter{Descendant: newAncestorID})
	if err != nil {
		return err
	}
	below, err := c.q.SelectClosure(ctx, ClosureFilter{Ancestor: nodeID})
	if err != nil {
		return err
	}
	rows := make([]ClosureRow, 0, len(above)*len(below))
	for _, a := range above {
		for _, d := range below {
			rows = append(rows, ClosureRow{
				Ancestor:   a.Ancestor,
				Descendant: d.Descendant,
				Depth:      a.Depth + d.Depth + 1,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return c.q.InsertClosure(ctx, rows)
}

// MoveNodeTo rewires the subtree rooted at nodeID under newAncestorID, or makes
// it a root when newAncestorID is nil. Moving under the current parent is a
// no-op.
func (c *Closure) MoveNodeTo(ctx context.Context, nodeID string, newAncestorID *string) error {
	parent, err := c.q.SelectClosure(ctx, ClosureFilter{Descendant: nodeID, MinDepth: 1, MaxDepth: 1})
	if err != nil {
		return err
	}
	var current *string
	if len(parent) > 0 {
		current = &parent[0].Ancestor
	}
	if sameParent(current, newAncestorID) {
		return nil
	}

	if err := c.UnbindSubtree(ctx, nodeID); err != nil {
		return err
	}
	if newAncestorID == nil {
		return nil
	}
	return c.ReattachSubtree(ctx, nodeID, *newAncestorID)
}

// AncestorsOf returns the path from nodeID up to its root, nearest first.
func (c *Closure) AncestorsOf(ctx context.Context, nodeID string, includeSelf bool) ([]ClosureRow, error) {
	return c.q.SelectClosure(ctx, ClosureFilter{Descendant: nodeID, MinDepth: minDepth(includeSelf)})
}

// DescendantsOf returns the subtree below nodeID ordered by depth.
func (c *Closure) DescendantsOf(ctx context.Context, nodeID string, includeSelf bool) ([]ClosureRow, error) {
	return c.q.SelectClosure(ctx, ClosureFilter{Ancestor: nodeID, MinDepth: minDepth(includeSelf)})
}

// DepthOf returns the number of edges between nodeID and its root.
func (c *Closure) DepthOf(ctx context.Context, nodeID string) (int, error) {
	chain, err := c.q.SelectClosure(ctx, ClosureFilter{Descendant: nodeID})
	if err != nil {
		return 0, err
	}
	if len(chain) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return chain[len(chain)-1].Depth, nil
}

// DeleteSubtreeRows removes every row whose descendant is in nodeIDs.
func (c *Closure) DeleteSubtreeRows(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	return c.q.DeleteClosureByDescendant(ctx, nodeIDs)
}

func minDepth(includeSelf bool) int {
	if includeSelf {
		return 0
	}
	return 1
}
