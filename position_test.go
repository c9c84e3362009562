package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testClock = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		requested *int
		latest    int
		want      int
	}{
		{"nil appends", nil, 4, 4},
		{"in range", Ptr(2), 4, 2},
		{"at end", Ptr(4), 4, 4},
		{"past end", Ptr(40), 4, 4},
		{"negative", Ptr(-3), 4, 0},
		{"empty group", Ptr(3), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.requested, tt.latest))
		})
	}
}

func TestSameParent(t *testing.T) {
	assert.True(t, sameParent(nil, nil))
	assert.True(t, sameParent(Ptr("a"), Ptr("a")))
	assert.False(t, sameParent(nil, Ptr("a")))
	assert.False(t, sameParent(Ptr("a"), nil))
	assert.False(t, sameParent(Ptr("a"), Ptr("b")))
}
