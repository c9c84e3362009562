// Package tree maintains ordered forests inside a relational store using a
// closure table.
//
// Every ancestor/descendant pair, including each node paired with itself, is
// kept as a ClosureRow with its depth, so ancestor, descendant and depth
// lookups are single reads. Children of the same parent form a sibling group
// whose positions are always 0..n-1.
//
// The Engine is the only writer: each of its operations runs inside one
// Store.InTx call and either updates nodes, positions and closure rows
// together or changes nothing.
package tree

import (
	"encoding/json"
	"time"
)

// Node is one vertex of the forest.
// A nil ParentID places the node in the root group.
type Node struct {
	ID        string          `json:"id,omitempty"`
	ParentID  *string         `json:"parent_id"`
	Position  int             `json:"position"`
	Data      json.RawMessage `json:"data,omitempty"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// Deleted reports whether the node has been soft-deleted.
func (n *Node) Deleted() bool {
	return n.DeletedAt != nil
}

// ClosureRow links an ancestor to a descendant at the given depth.
// Depth 0 is the reflexive row of a node.
type ClosureRow struct {
	Ancestor   string `json:"ancestor"`
	Descendant string `json:"descendant"`
	Depth      int    `json:"depth"`
}

// Ptr returns a pointer to v. It is handy for optional parent and position
// arguments.
func Ptr[T any](v T) *T {
	return &v
}

// sameParent compares two parent references, treating nil as the root group.
func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// parentOrSelf is the ancestor a new node's closure chain starts from.
func parentOrSelf(n *Node) string {
	if n.ParentID == nil {
		return n.ID
	}
	return *n.ParentID
}

func ids(rows []ClosureRow, pick func(ClosureRow) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, pick(r))
	}
	return out
}
