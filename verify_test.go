package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memQuerier serves the two reads Verify needs from slices.
type memQuerier struct {
	Querier
	nodes []Node
	rows  []ClosureRow
}

func (m *memQuerier) ListNodes(context.Context, NodeFilter) ([]Node, error) {
	return m.nodes, nil
}

func (m *memQuerier) SelectClosure(context.Context, ClosureFilter) ([]ClosureRow, error) {
	return m.rows, nil
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		rows  []ClosureRow
		want  []string
	}{
		{
			name:  "healthy",
			nodes: []Node{{ID: "a"}, {ID: "b", ParentID: Ptr("a")}},
			rows:  []ClosureRow{{"a", "a", 0}, {"b", "b", 0}, {"a", "b", 1}},
		},
		{
			name:  "wrong depth",
			nodes: []Node{{ID: "a"}, {ID: "b", ParentID: Ptr("a")}},
			rows:  []ClosureRow{{"a", "a", 0}, {"b", "b", 0}, {"a", "b", 2}},
			want:  []string{MissingRow, StrayRow},
		},
		{
			name:  "missing parent",
			nodes: []Node{{ID: "c", ParentID: Ptr("x")}},
			rows:  []ClosureRow{{"c", "c", 0}},
			want:  []string{MissingParent},
		},
		{
			name:  "parent cycle",
			nodes: []Node{{ID: "d", ParentID: Ptr("e")}, {ID: "e", ParentID: Ptr("d")}},
			rows:  []ClosureRow{{"d", "d", 0}, {"e", "e", 0}, {"e", "d", 1}, {"d", "e", 1}},
			want:  []string{ParentCycle, ParentCycle},
		},
		{
			name:  "position gap",
			nodes: []Node{{ID: "a"}, {ID: "b", Position: 2}},
			rows:  []ClosureRow{{"a", "a", 0}, {"b", "b", 0}},
			want:  []string{PositionGap},
		},
		{
			name:  "deleted nodes leave no gap",
			nodes: []Node{{ID: "a"}, {ID: "b", Position: 1, DeletedAt: Ptr(testClock)}, {ID: "c", Position: 1}},
			rows:  []ClosureRow{{"a", "a", 0}, {"b", "b", 0}, {"c", "c", 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Verify(context.Background(), &memQuerier{nodes: tt.nodes, rows: tt.rows})
			require.NoError(t, err)

			var kinds []string
			for _, v := range got {
				kinds = append(kinds, v.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestViolationString(t *testing.T) {
	v := Violation{Kind: PositionGap, NodeID: "9", Detail: "positions [0 1 2 8]"}
	assert.Equal(t, "position_gap 9: positions [0 1 2 8]", v.String())
}
