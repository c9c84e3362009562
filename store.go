package tree

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidOperation = errors.New("tree: invalid operation")
	ErrNodeNotFound     = errors.New("tree: node not found")
	ErrNodeExists       = errors.New("tree: node already exists")
)

// NodeFilter selects rows of the node table. An empty IDs list selects every
// node. Soft-deleted nodes are skipped unless WithDeleted is set.
type NodeFilter struct {
	IDs         []string
	WithDeleted bool
}

// ClosureFilter selects closure rows. Empty ids match any value.
// MaxDepth zero means no upper bound.
type ClosureFilter struct {
	Ancestor   string
	Descendant string
	MinDepth   int
	MaxDepth   int
}

// Shift adds Delta to the position of every live node in the Parent group whose
// position lies in [From, To]. A negative To leaves the range open. The node
// named by Exclude is never touched.
type Shift struct {
	Parent  *string
	From    int
	To      int
	Delta   int
	Exclude string
}

// Querier is the set of set-based primitives the engine needs from the backing
// store. Store implementations hand out one bound to a pool for plain reads and
// one bound to a transaction inside InTx.
type Querier interface {
	// Nodes. GetNode and NodeAt return nil, nil when nothing matches;
	// UpdateNode returns ErrNodeNotFound.
	InsertNode(ctx context.Context, n *Node) error
	GetNode(ctx context.Context, id string) (*Node, error)
	UpdateNode(ctx context.Context, n *Node) error
	ListNodes(ctx context.Context, f NodeFilter) ([]Node, error)
	ListGroup(ctx context.Context, parent *string) ([]Node, error)
	NodeAt(ctx context.Context, parent *string, position int) (*Node, error)
	MarkDeleted(ctx context.Context, ids []string, at *time.Time) error
	DeleteNodes(ctx context.Context, ids []string) error

	// Positions. MaxPosition returns -1 for an empty group.
	MaxPosition(ctx context.Context, parent *string) (int, error)
	ShiftPositions(ctx context.Context, s Shift) error

	// Closure
	SelectClosure(ctx context.Context, f ClosureFilter) ([]ClosureRow, error)
	InsertClosure(ctx context.Context, rows []ClosureRow) error
	DeleteClosure(ctx context.Context, ancestors, descendants []string) error
	DeleteClosureByDescendant(ctx context.Context, descendants []string) error
}

// Store defines the contract for persisting a forest.
type Store interface {
	Querier

	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(q Querier) error) error

	Close()
}
