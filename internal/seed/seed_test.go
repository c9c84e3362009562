package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/sqlite"
	"github.com/meikuraledutech/tree/treetest"
)

func TestApplyHandbook(t *testing.T) {
	f, err := ParseFile("testdata/handbook.yaml")
	require.NoError(t, err)

	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	e := tree.NewEngine(s)
	ctx := context.Background()

	count, err := Apply(ctx, e, nil, f)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	assert.Equal(t, []string{"handbook@0", "archive@1"}, treetest.Roots(t, e))
	assert.Equal(t, []string{"onboarding@0", "policies@1"}, treetest.Group(t, e, tree.Ptr("handbook")))
	assert.Equal(t, []string{"laptop@0", "accounts@1"}, treetest.Group(t, e, tree.Ptr("onboarding")))
	assert.Equal(t, []string{"policies", "handbook"}, treetest.Lineage(t, e, "travel"))

	travel, err := e.Get(ctx, "travel")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Travel","limits":{"hotel":180,"meals":60}}`, string(travel.Data))
	treetest.AssertInvariants(t, s)
}

func TestApplyUnderParentGeneratesIDs(t *testing.T) {
	f, err := Parse(strings.NewReader(`
nodes:
  - children:
      - data: {title: leaf}
`))
	require.NoError(t, err)

	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	e := tree.NewEngine(s)
	ctx := context.Background()
	_, err = e.Create(ctx, &tree.Node{ID: "top"}, nil)
	require.NoError(t, err)

	count, err := Apply(ctx, e, tree.Ptr("top"), f)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rows, err := e.Descendants(ctx, "top", false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[1].Depth)
}

func TestApplyWritesNothingOnFailure(t *testing.T) {
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	e := tree.NewEngine(s)
	ctx := context.Background()
	_, err = e.Create(ctx, &tree.Node{ID: "guides"}, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, &tree.Node{ID: "setup", ParentID: tree.Ptr("guides")}, nil)
	require.NoError(t, err)

	// fresh lands under setup, then guides would move below its own
	// descendant.
	f, err := Parse(strings.NewReader(`
nodes:
  - id: fresh
    children:
      - id: guides
`))
	require.NoError(t, err)

	before := treetest.Snapshot(t, s)
	_, err = Apply(ctx, e, tree.Ptr("setup"), f)
	require.ErrorIs(t, err, tree.ErrInvalidOperation)
	assert.Equal(t, before, treetest.Snapshot(t, s))

	fresh, err := e.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Nil(t, fresh)
	assert.Equal(t, []string{"guides"}, treetest.Lineage(t, e, "setup"))
}

func TestParseRejects(t *testing.T) {
	_, err := Parse(strings.NewReader("nodes:\n  - id: a\n    kids: []\n"))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("nodes:\n  - id: a\n    children:\n      - id: a\n"))
	require.ErrorContains(t, err, "duplicate node id")

	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Nodes)
}
