package tree

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedNodes is the reference forest as flat rows: roots 1..9, 9 -> 10 -> 11
// -> 12 and 9 -> 13, 14, 15.
func seedNodes() []Node {
	var nodes []Node
	for i := 1; i <= 9; i++ {
		nodes = append(nodes, Node{ID: fmt.Sprint(i), Position: i - 1})
	}
	return append(nodes,
		Node{ID: "10", ParentID: Ptr("9"), Position: 0},
		Node{ID: "11", ParentID: Ptr("10"), Position: 0},
		Node{ID: "12", ParentID: Ptr("11"), Position: 0},
		Node{ID: "13", ParentID: Ptr("9"), Position: 1},
		Node{ID: "14", ParentID: Ptr("9"), Position: 2},
		Node{ID: "15", ParentID: Ptr("9"), Position: 3},
	)
}

func render(t *testing.T, forest []*TreeNode, label func(Node) string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, forest, label))
	return buf.Bytes()
}

func TestBuildIgnoresInputOrder(t *testing.T) {
	want := render(t, Build(seedNodes()), nil)

	r := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		nodes := seedNodes()
		r.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
		assert.Equal(t, string(want), string(render(t, Build(nodes), nil)))
	}
}

func TestBuildSubsetPromotesOrphans(t *testing.T) {
	nodes := []Node{
		{ID: "12", ParentID: Ptr("11"), Position: 0},
		{ID: "13", ParentID: Ptr("9"), Position: 1},
		{ID: "10", ParentID: Ptr("9"), Position: 0},
		{ID: "11", ParentID: Ptr("10"), Position: 0},
	}
	forest := Build(nodes)

	require.Len(t, forest, 2)
	assert.Equal(t, "10", forest[0].ID)
	assert.Equal(t, "13", forest[1].ID)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "12", forest[0].Children[0].Children[0].ID)
}

func TestBuildEdgeCases(t *testing.T) {
	assert.Empty(t, Build(nil))

	forest := Build([]Node{
		{ID: "a", Position: 0},
		{ID: "a", Position: 5},
		{ID: "b", ParentID: Ptr("b")},
	})
	require.Len(t, forest, 2)
	assert.Equal(t, 0, forest[0].Position)
	assert.Equal(t, "a", forest[0].ID)
	assert.Equal(t, "b", forest[1].ID)
	assert.Empty(t, forest[1].Children)
}

func TestRenderGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	g.Assert(t, "seed_forest", render(t, Build(seedNodes()), nil))

	nodes := []Node{
		{ID: "1", Position: 0},
		{ID: "2", Position: 1},
		{ID: "3", ParentID: Ptr("1"), Position: 1},
		{ID: "4", ParentID: Ptr("1"), Position: 0},
		{ID: "5", ParentID: Ptr("4"), Position: 0},
	}
	label := func(n Node) string { return fmt.Sprintf("%s (%d)", n.ID, n.Position) }
	g.Assert(t, "labelled_outline", render(t, Build(nodes), label))
}
