package tree

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// The three hooks below let a model layer that writes node rows itself keep
// the closure and positions in step from its own save events. All of them
// must run on the Querier of the transaction that saves the node:
//
//	changed, err := e.BeforeSave(ctx, tx, before, &after)
//	// insert or update the row, then
//	err = e.AfterCreate(ctx, tx, &after)      // new node
//	err = e.AfterSave(ctx, tx, *before, after) // existing node, when changed
//
// The previous parent and position travel in before; nothing is cached on the
// node between the calls. Engine operations go through the same code.

// BeforeSave validates a pending change and settles after.Position. before is
// nil for a node that is not stored yet. A negative after.Position asks for
// the end of the group. It reports whether the change moves the node.
func (e *Engine) BeforeSave(ctx context.Context, q Querier, before, after *Node) (bool, error) {
	if after.ID == "" {
		after.ID = uuid.NewString()
	}
	var want *int
	if after.Position >= 0 {
		want = Ptr(after.Position)
	}
	return e.prepare(ctx, q, before, after, want)
}

// AfterCreate opens the node's slot in its group and writes its closure rows.
func (e *Engine) AfterCreate(ctx context.Context, q Querier, n *Node) error {
	return e.apply(ctx, q, nil, n)
}

// AfterSave reorders the affected groups and rewires the closure when the
// parent changed.
func (e *Engine) AfterSave(ctx context.Context, q Querier, before, after Node) error {
	return e.apply(ctx, q, &before, &after)
}

// prepare checks the target parent and clamps the position. Everything it
// rejects is rejected before the first write of the operation.
func (e *Engine) prepare(ctx context.Context, q Querier, before, after *Node, pos *int) (bool, error) {
	if err := checkSelfParent(after.ID, after.ParentID); err != nil {
		return false, err
	}
	reparent := before == nil || !sameParent(before.ParentID, after.ParentID)

	if after.ParentID != nil {
		parent, err := q.GetNode(ctx, *after.ParentID)
		if err != nil {
			return false, err
		}
		// A soft-deleted parent takes no new children, but its own group can
		// still be reordered.
		if parent == nil || (reparent && parent.Deleted()) {
			return false, fmt.Errorf("%w: parent %s", ErrNodeNotFound, *after.ParentID)
		}
		if before != nil && reparent {
			below, err := q.SelectClosure(ctx, ClosureFilter{
				Ancestor:   after.ID,
				Descendant: *after.ParentID,
				MinDepth:   1,
			})
			if err != nil {
				return false, err
			}
			if len(below) > 0 {
				return false, fmt.Errorf("%w: %s is a descendant of %s", ErrInvalidOperation, *after.ParentID, after.ID)
			}
		}
	}

	latest, err := NewPositions(q).Latest(ctx, after.ParentID)
	if err != nil {
		return false, err
	}
	if !reparent {
		// The node leaves its own group before it re-enters it.
		latest = max(latest-1, 0)
	}
	after.Position = Clamp(pos, latest)

	return reparent || after.Position != before.Position, nil
}

// apply shifts the affected groups and updates the closure for a change that
// prepare accepted. before is nil for a new node.
func (e *Engine) apply(ctx context.Context, q Querier, before, after *Node) error {
	pos := NewPositions(q)
	if before == nil {
		if err := pos.OpenAt(ctx, after.ParentID, after.Position, after.ID); err != nil {
			return err
		}
		return NewClosure(q).InsertLeaf(ctx, parentOrSelf(after), after.ID)
	}

	reparent := !sameParent(before.ParentID, after.ParentID)
	if !reparent && before.Position == after.Position {
		return nil
	}
	// Close the old slot first so a move inside one group opens the new slot
	// against the post-removal positions.
	if err := pos.CloseAt(ctx, before.ParentID, before.Position, after.ID); err != nil {
		return err
	}
	if err := pos.OpenAt(ctx, after.ParentID, after.Position, after.ID); err != nil {
		return err
	}
	if reparent {
		return NewClosure(q).MoveNodeTo(ctx, after.ID, after.ParentID)
	}
	return nil
}
