package tree

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
)

// TreeNode is a Node with its children attached.
type TreeNode struct {
	Node
	Children []*TreeNode `json:"children,omitempty"`
}

// Build nests a flat list of nodes by their parent references without any
// store access. The result does not depend on the order of nodes: roots and
// children are sorted by position, then id.
//
// nodes may be a subset of a forest. A node whose parent is not in the list
// becomes a root of the returned forest.
func Build(nodes []Node) []*TreeNode {
	index := make(map[string]*TreeNode, len(nodes))
	order := make([]*TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n.ID]; dup {
			continue
		}
		tn := &TreeNode{Node: n}
		index[n.ID] = tn
		order = append(order, tn)
	}

	roots := make([]*TreeNode, 0)
	for _, tn := range order {
		if tn.ParentID != nil {
			if parent, ok := index[*tn.ParentID]; ok && parent != tn {
				parent.Children = append(parent.Children, tn)
				continue
			}
		}
		roots = append(roots, tn)
	}

	sortLevel(roots)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		tn := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sortLevel(tn.Children)
		stack = append(stack, tn.Children...)
	}
	return roots
}

func sortLevel(level []*TreeNode) {
	slices.SortFunc(level, func(a, b *TreeNode) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Render writes forest as an indented outline, one node per line. label
// formats a node; nil prints the id.
func Render(w io.Writer, forest []*TreeNode, label func(Node) string) error {
	if label == nil {
		label = func(n Node) string { return n.ID }
	}
	type frame struct {
		node  *TreeNode
		depth int
	}
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{forest[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, err := fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", f.depth), label(f.node.Node)); err != nil {
			return err
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
	return nil
}
