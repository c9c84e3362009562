package tree

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Observer receives the outcome of every engine operation.
type Observer interface {
	ObserveOp(op string, d time.Duration, err error)
}

// Engine applies structural changes to a forest. Each exported mutation runs
// in exactly one Store.InTx call, batch operations included, so closure rows,
// positions and node rows are committed together or not at all.
//
// Engine holds no per-node state and may be shared between goroutines, but
// dense positions only survive concurrent writers to the same sibling group
// when the store serializes them. The sqlite store does, through its single
// connection. On Postgres the default READ COMMITTED lets two appends read the
// same end of a group; use postgres.WithTxOptions with pgx.Serializable and
// retry serialization failures, or keep one writer per group.
type Engine struct {
	store   Store
	promote bool
	logger  *slog.Logger
	obs     Observer
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-operation records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver reports every operation to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.obs = o
	}
}

// WithPromoteChildren selects the deletion policy for single nodes.
//
// When on, the live children of a deleted node take its place in the parent
// group, in order. When off (the default), a soft delete leaves the children
// attached to the deleted node so it can be restored, and a hard delete
// removes the node together with its subtree.
func WithPromoteChildren(on bool) Option {
	return func(e *Engine) {
		e.promote = on
	}
}

// WithClock overrides the time source used for soft-delete stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine writing to s.
func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run executes fn in one transaction and reports the outcome.
func (e *Engine) run(ctx context.Context, op string, fn func(q Querier) error) error {
	start := time.Now()
	err := e.store.InTx(ctx, fn)
	d := time.Since(start)

	if e.obs != nil {
		e.obs.ObserveOp(op, d, err)
	}
	switch {
	case err == nil:
		e.logger.DebugContext(ctx, "tree op", "op", op, "duration", d)
	case errors.Is(err, ErrInvalidOperation), errors.Is(err, ErrNodeNotFound), errors.Is(err, ErrNodeExists):
		e.logger.WarnContext(ctx, "tree op rejected", "op", op, "error", err)
	default:
		e.logger.ErrorContext(ctx, "tree op failed", "op", op, "duration", d, "error", err)
	}
	return err
}

// Create stores n under n.ParentID at pos, or at the end of the group when
// pos is nil. An empty n.ID is filled with a UUID. n is updated in place.
func (e *Engine) Create(ctx context.Context, n *Node, pos *int) (*Node, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := checkSelfParent(n.ID, n.ParentID); err != nil {
		return nil, err
	}
	err := e.run(ctx, "create", func(q Querier) error {
		return e.create(ctx, q, n, pos)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// MoveTo reparents the node id under parent (nil for the root group) and
// places it at pos. Moving a node under itself or one of its descendants fails
// with ErrInvalidOperation and changes nothing. Moving to the current parent
// and position writes nothing. A missing or deleted node yields nil, nil.
func (e *Engine) MoveTo(ctx context.Context, id string, parent *string, pos *int) (*Node, error) {
	if err := checkSelfParent(id, parent); err != nil {
		return nil, err
	}
	var moved *Node
	err := e.run(ctx, "move", func(q Querier) error {
		var err error
		moved, err = e.move(ctx, q, id, parent, pos)
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// AddChild places child in the parent group at pos. A child that already
// exists is moved there; otherwise it is created. Only the structure of an
// existing child changes, its Data is left as stored. A soft-deleted child is
// restored before it is moved.
func (e *Engine) AddChild(ctx context.Context, parent *string, child *Node, pos *int) (*Node, error) {
	var placed *Node
	err := e.run(ctx, "add_child", func(q Querier) error {
		var err error
		placed, err = e.place(ctx, q, parent, child, pos)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// AddChildren places children in the parent group at consecutive positions
// starting at start, or appends them when start is nil. start counts the
// group without the children that are already in it, so those end up at
// start, start+1, ... as well. Either every child is placed or none is.
func (e *Engine) AddChildren(ctx context.Context, parent *string, children []*Node, start *int) ([]*Node, error) {
	var placed []*Node
	err := e.run(ctx, "add_children", func(q Querier) error {
		var err error
		placed, err = e.addChildren(ctx, q, parent, children, start)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// AddForest appends a nested forest under parent in one transaction. Every
// sibling group is placed like AddChildren with a nil start, parents before
// children. The placed nodes are returned level by level; the Node of each
// TreeNode is updated in place.
func (e *Engine) AddForest(ctx context.Context, parent *string, forest []*TreeNode) ([]*Node, error) {
	type level struct {
		parent *string
		nodes  []*TreeNode
	}
	var placed []*Node
	err := e.run(ctx, "add_forest", func(q Querier) error {
		placed = nil
		queue := []level{{parent: parent, nodes: forest}}
		for len(queue) > 0 {
			lv := queue[0]
			queue = queue[1:]
			if len(lv.nodes) == 0 {
				continue
			}
			batch := make([]*Node, len(lv.nodes))
			for i, tn := range lv.nodes {
				batch[i] = &tn.Node
			}
			got, err := e.addChildren(ctx, q, lv.parent, batch, nil)
			if err != nil {
				return err
			}
			placed = append(placed, got...)
			for i, n := range got {
				queue = append(queue, level{parent: Ptr(n.ID), nodes: lv.nodes[i].Children})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// AddSibling places sibling in the group of ref. ref is refreshed afterwards
// so its Position reflects the shift the insertion caused.
func (e *Engine) AddSibling(ctx context.Context, ref *Node, sibling *Node, pos *int) (*Node, error) {
	var placed *Node
	err := e.run(ctx, "add_sibling", func(q Querier) error {
		cur, err := q.GetNode(ctx, ref.ID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Deleted() {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, ref.ID)
		}
		placed, err = e.place(ctx, q, cur.ParentID, sibling, pos)
		if err != nil {
			return err
		}
		fresh, err := q.GetNode(ctx, ref.ID)
		if err != nil {
			return err
		}
		ref.ParentID, ref.Position = fresh.ParentID, fresh.Position
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// RemoveChild deletes the node at position in the parent group. It returns
// nil, nil when the position is empty.
func (e *Engine) RemoveChild(ctx context.Context, parent *string, position int, hard bool) (*Node, error) {
	var removed *Node
	err := e.run(ctx, "remove_child", func(q Querier) error {
		n, err := q.NodeAt(ctx, parent, position)
		if err != nil || n == nil {
			return err
		}
		removed = n
		return e.remove(ctx, q, n, hard)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// RemoveChildren deletes the nodes at positions from..to (inclusive) of the
// parent group; a nil to runs to the end of the group. The nodes after the
// range move up by the number removed.
func (e *Engine) RemoveChildren(ctx context.Context, parent *string, from int, to *int, hard bool) ([]Node, error) {
	var targets []Node
	err := e.run(ctx, "remove_children", func(q Querier) error {
		group, err := q.ListGroup(ctx, parent)
		if err != nil {
			return err
		}
		for _, n := range group {
			if n.Position >= from && (to == nil || n.Position <= *to) {
				targets = append(targets, n)
			}
		}
		if len(targets) == 0 {
			return nil
		}

		if e.promote {
			for i := len(targets) - 1; i >= 0; i-- {
				if err := e.remove(ctx, q, &targets[i], hard); err != nil {
					return err
				}
			}
			return nil
		}

		roots := make([]string, 0, len(targets))
		for _, n := range targets {
			roots = append(roots, n.ID)
		}
		if hard {
			if err := e.purge(ctx, q, roots...); err != nil {
				return err
			}
		} else if err := q.MarkDeleted(ctx, roots, Ptr(e.now().UTC())); err != nil {
			return err
		}
		last := targets[len(targets)-1].Position
		return NewPositions(q).ShiftFrom(ctx, parent, last+1, -len(targets), "")
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// Delete removes a single node according to the engine's deletion policy.
// A soft delete keeps the node's closure rows; a hard delete removes them.
// Hard-deleting a node that is already soft-deleted purges it.
func (e *Engine) Delete(ctx context.Context, id string, hard bool) error {
	return e.run(ctx, "delete", func(q Querier) error {
		n, err := q.GetNode(ctx, id)
		if err != nil || n == nil {
			return err
		}
		return e.remove(ctx, q, n, hard)
	})
}

// DeleteSubtree deletes every descendant of id, and id itself when withSelf
// is set. It returns the number of nodes affected.
func (e *Engine) DeleteSubtree(ctx context.Context, id string, withSelf, hard bool) (int, error) {
	var count int
	err := e.run(ctx, "delete_subtree", func(q Querier) error {
		n, err := q.GetNode(ctx, id)
		if err != nil || n == nil {
			return err
		}
		rows, err := NewClosure(q).DescendantsOf(ctx, id, withSelf)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		members := ids(rows, func(r ClosureRow) string { return r.Descendant })
		count = len(members)

		if hard {
			if err := NewClosure(q).DeleteSubtreeRows(ctx, members); err != nil {
				return err
			}
			if err := q.DeleteNodes(ctx, members); err != nil {
				return err
			}
		} else if err := q.MarkDeleted(ctx, members, Ptr(e.now().UTC())); err != nil {
			return err
		}

		if withSelf && !n.Deleted() {
			return NewPositions(q).CloseAt(ctx, n.ParentID, n.Position, n.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Restore brings a soft-deleted node back at the end of its group. Its closure
// rows were kept, so nothing is recomputed. A missing node yields nil, nil.
func (e *Engine) Restore(ctx context.Context, id string) (*Node, error) {
	var restored *Node
	err := e.run(ctx, "restore", func(q Querier) error {
		n, err := q.GetNode(ctx, id)
		if err != nil || n == nil {
			return err
		}
		restored = n
		return e.restore(ctx, q, n)
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// Get returns the node with the given id, or nil, nil.
func (e *Engine) Get(ctx context.Context, id string) (*Node, error) {
	return e.store.GetNode(ctx, id)
}

// Children returns the live members of the parent group in position order.
func (e *Engine) Children(ctx context.Context, parent *string) ([]Node, error) {
	return e.store.ListGroup(ctx, parent)
}

// Ancestors returns the closure rows from id up to its root, nearest first.
func (e *Engine) Ancestors(ctx context.Context, id string, includeSelf bool) ([]ClosureRow, error) {
	return NewClosure(e.store).AncestorsOf(ctx, id, includeSelf)
}

// Descendants returns the closure rows of the subtree below id by depth.
func (e *Engine) Descendants(ctx context.Context, id string, includeSelf bool) ([]ClosureRow, error) {
	return NewClosure(e.store).DescendantsOf(ctx, id, includeSelf)
}

// Depth returns the distance between id and its root.
func (e *Engine) Depth(ctx context.Context, id string) (int, error) {
	return NewClosure(e.store).DepthOf(ctx, id)
}

// Tree returns the live forest, or the subtree rooted at root when it is set.
func (e *Engine) Tree(ctx context.Context, root *string) ([]*TreeNode, error) {
	var f NodeFilter
	if root != nil {
		rows, err := e.Descendants(ctx, *root, true)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		f.IDs = ids(rows, func(r ClosureRow) string { return r.Descendant })
	}
	nodes, err := e.store.ListNodes(ctx, f)
	if err != nil {
		return nil, err
	}
	// Live nodes below a soft-deleted parent surface as extra roots; drop them.
	forest := Build(nodes)
	kept := forest[:0]
	for _, tn := range forest {
		if (root == nil && tn.ParentID == nil) || (root != nil && tn.ID == *root) {
			kept = append(kept, tn)
		}
	}
	return kept, nil
}

func (e *Engine) create(ctx context.Context, q Querier, n *Node, pos *int) error {
	if _, err := e.prepare(ctx, q, nil, n, pos); err != nil {
		return err
	}
	n.DeletedAt = nil
	if err := q.InsertNode(ctx, n); err != nil {
		return err
	}
	return e.apply(ctx, q, nil, n)
}

func (e *Engine) move(ctx context.Context, q Querier, id string, parent *string, pos *int) (*Node, error) {
	before, err := q.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if before == nil || before.Deleted() {
		return nil, nil
	}

	after := *before
	after.ParentID = parent
	changed, err := e.prepare(ctx, q, before, &after, pos)
	if err != nil {
		return nil, err
	}
	if !changed {
		return before, nil
	}
	if err := e.apply(ctx, q, before, &after); err != nil {
		return nil, err
	}
	if err := q.UpdateNode(ctx, &after); err != nil {
		return nil, err
	}
	return &after, nil
}

// addChildren takes the live members of the target group out of it first, so
// the batch lands on consecutive positions among the nodes that stay.
func (e *Engine) addChildren(ctx context.Context, q Querier, parent *string, children []*Node, start *int) ([]*Node, error) {
	pos := NewPositions(q)
	latest, err := pos.Latest(ctx, parent)
	if err != nil {
		return nil, err
	}

	detached := make(map[string]*Node)
	var members []*Node
	for _, c := range children {
		if c.ID == "" || detached[c.ID] != nil {
			continue
		}
		n, err := q.GetNode(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if n == nil || n.Deleted() || !sameParent(n.ParentID, parent) {
			continue
		}
		detached[n.ID] = n
		members = append(members, n)
	}
	// Highest first, so every stored position is still valid when it closes.
	slices.SortFunc(members, func(a, b *Node) int { return cmp.Compare(b.Position, a.Position) })
	for _, n := range members {
		if err := pos.CloseAt(ctx, parent, n.Position, n.ID); err != nil {
			return nil, err
		}
	}
	first := Clamp(start, latest-len(members))

	placed := make([]*Node, 0, len(children))
	for i, c := range children {
		at := first + i
		if n, ok := detached[c.ID]; ok {
			delete(detached, c.ID)
			if err := pos.OpenAt(ctx, parent, at, n.ID); err != nil {
				return nil, err
			}
			n.Position = at
			if err := q.UpdateNode(ctx, n); err != nil {
				return nil, err
			}
			*c = *n
			placed = append(placed, c)
			continue
		}
		n, err := e.place(ctx, q, parent, c, Ptr(at))
		if err != nil {
			return nil, err
		}
		placed = append(placed, n)
	}
	return placed, nil
}

// place moves child into the parent group when it exists and creates it
// otherwise. A soft-deleted child is restored first.
func (e *Engine) place(ctx context.Context, q Querier, parent *string, child *Node, pos *int) (*Node, error) {
	if child.ID == "" {
		child.ID = uuid.NewString()
	} else {
		existing, err := q.GetNode(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := e.restore(ctx, q, existing); err != nil {
				return nil, err
			}
			moved, err := e.move(ctx, q, child.ID, parent, pos)
			if err != nil {
				return nil, err
			}
			*child = *moved
			return child, nil
		}
	}
	child.ParentID = parent
	if err := e.create(ctx, q, child, pos); err != nil {
		return nil, err
	}
	return child, nil
}

// restore re-enters a soft-deleted n at the end of its group.
func (e *Engine) restore(ctx context.Context, q Querier, n *Node) error {
	if !n.Deleted() {
		return nil
	}
	latest, err := NewPositions(q).Latest(ctx, n.ParentID)
	if err != nil {
		return err
	}
	n.Position = latest
	n.DeletedAt = nil
	return q.UpdateNode(ctx, n)
}

// remove deletes one node under the configured policy and closes its slot.
func (e *Engine) remove(ctx context.Context, q Querier, n *Node, hard bool) error {
	if n.Deleted() {
		if !hard {
			return nil
		}
		return e.purge(ctx, q, n.ID)
	}

	if e.promote {
		if err := e.promoteChildren(ctx, q, n); err != nil {
			return err
		}
	}
	if hard {
		if err := e.purge(ctx, q, n.ID); err != nil {
			return err
		}
	} else if err := q.MarkDeleted(ctx, []string{n.ID}, Ptr(e.now().UTC())); err != nil {
		return err
	}
	return NewPositions(q).CloseAt(ctx, n.ParentID, n.Position, n.ID)
}

// promoteChildren splices the live children of n into n's group right after
// n, keeping their order. They end up in n's slot once n closes it.
func (e *Engine) promoteChildren(ctx context.Context, q Querier, n *Node) error {
	kids, err := q.ListGroup(ctx, &n.ID)
	if err != nil {
		return err
	}
	for i := len(kids) - 1; i >= 0; i-- {
		before := kids[i]
		after := before
		after.ParentID = n.ParentID
		after.Position = n.Position + 1
		if err := e.apply(ctx, q, &before, &after); err != nil {
			return err
		}
		if err := q.UpdateNode(ctx, &after); err != nil {
			return err
		}
	}
	return nil
}

// purge hard-deletes the subtrees rooted at roots, closure rows first.
func (e *Engine) purge(ctx context.Context, q Querier, roots ...string) error {
	c := NewClosure(q)
	var members []string
	for _, id := range roots {
		rows, err := c.DescendantsOf(ctx, id, true)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			members = append(members, id)
			continue
		}
		members = append(members, ids(rows, func(r ClosureRow) string { return r.Descendant })...)
	}
	if err := c.DeleteSubtreeRows(ctx, members); err != nil {
		return err
	}
	return q.DeleteNodes(ctx, members)
}

func checkSelfParent(id string, parent *string) error {
	if parent != nil && *parent == id {
		return fmt.Errorf("%w: node %s cannot be its own parent", ErrInvalidOperation, id)
	}
	return nil
}
