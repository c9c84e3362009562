package tree

import "context"

// Positions keeps the sibling groups dense. Positions are an integer column on
// the node rows; every insert opens a gap with a shift and every removal closes
// one, so a group always reads 0..n-1 once the transaction commits.
type Positions struct {
	q Querier
}

// NewPositions binds the position primitives to q, usually a transaction.
func NewPositions(q Querier) *Positions {
	return &Positions{q: q}
}

// Latest returns the position right after the last live node of the group,
// which is 0 for an empty group.
func (p *Positions) Latest(ctx context.Context, parent *string) (int, error) {
	last, err := p.q.MaxPosition(ctx, parent)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// ShiftFrom adds delta to every live node of the group at or after from,
// skipping exclude.
func (p *Positions) ShiftFrom(ctx context.Context, parent *string, from, delta int, exclude string) error {
	return p.ShiftRange(ctx, Shift{Parent: parent, From: from, To: -1, Delta: delta, Exclude: exclude})
}

// ShiftRange applies s as one set-based update.
func (p *Positions) ShiftRange(ctx context.Context, s Shift) error {
	if s.Delta == 0 {
		return nil
	}
	return p.q.ShiftPositions(ctx, s)
}

// OpenAt makes room for one node at position at.
func (p *Positions) OpenAt(ctx context.Context, parent *string, at int, exclude string) error {
	return p.ShiftFrom(ctx, parent, at, 1, exclude)
}

// CloseAt closes the gap left by the node that used to sit at position at.
func (p *Positions) CloseAt(ctx context.Context, parent *string, at int, exclude string) error {
	return p.ShiftFrom(ctx, parent, at+1, -1, exclude)
}

// Clamp bounds a requested position to [0, latest]. A nil request means the
// end of the group.
func Clamp(requested *int, latest int) int {
	if requested == nil {
		return latest
	}
	return max(0, min(*requested, latest))
}
