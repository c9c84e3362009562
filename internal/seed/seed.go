// Package seed loads a nested forest from YAML and writes it through the
// engine in a single transaction: a file that fails part way writes nothing.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/tree"
)

// File is the top level of a seed file.
type File struct {
	Nodes []Node `yaml:"nodes"`
}

// Node is one entry of a seed file. An empty ID is generated on load.
type Node struct {
	ID       string         `yaml:"id"`
	Data     map[string]any `yaml:"data"`
	Children []Node         `yaml:"children"`
}

// Parse decodes a seed file, rejecting unknown fields and duplicate ids.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool)
	stack := append([]Node(nil), f.Nodes...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.ID != "" {
			if seen[n.ID] {
				return nil, fmt.Errorf("duplicate node id %q", n.ID)
			}
			seen[n.ID] = true
		}
		stack = append(stack, n.Children...)
	}
	return &f, nil
}

// ParseFile reads and parses the seed file at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply appends the forest of f under parent (nil for the root group) and
// returns the number of nodes written.
func Apply(ctx context.Context, e *tree.Engine, parent *string, f *File) (int, error) {
	forest, err := convert(f.Nodes)
	if err != nil {
		return 0, err
	}
	placed, err := e.AddForest(ctx, parent, forest)
	if err != nil {
		return 0, err
	}
	return len(placed), nil
}

func convert(nodes []Node) ([]*tree.TreeNode, error) {
	out := make([]*tree.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		var data json.RawMessage
		if n.Data != nil {
			b, err := json.Marshal(n.Data)
			if err != nil {
				return nil, fmt.Errorf("encoding data of %q: %w", n.ID, err)
			}
			data = b
		}
		children, err := convert(n.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, &tree.TreeNode{Node: tree.Node{ID: n.ID, Data: data}, Children: children})
	}
	return out, nil
}
