package lsq

import (
	"testing"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDelta(t *testing.T) {
	tests := []struct {
		name       string
		prev, next []int
		want       Delta
	}{
		{
			name: "first step",
			next: []int{4},
			want: Delta{Added: []int{0}},
		},
		{
			name: "append",
			prev: []int{4, 1},
			next: []int{4, 1, 7},
			want: Delta{Added: []int{2}, Conserved: []Rank{{0, 0}, {1, 1}}},
		},
		{
			name: "remove middle",
			prev: []int{4, 1, 7},
			next: []int{4, 7},
			want: Delta{Conserved: []Rank{{0, 0}, {1, 2}}, Removed: []int{1}},
		},
		{
			name: "swap one",
			prev: []int{4, 1, 7},
			next: []int{1, 7, 3},
			want: Delta{Added: []int{2}, Conserved: []Rank{{0, 1}, {1, 2}}, Removed: []int{0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDelta(tt.prev, tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.next)-len(tt.prev), got.SizeChange())
			assert.NoError(t, got.validateOrdered(len(tt.prev)))
		})
	}
}

func TestNewDeltaRejectsDuplicates(t *testing.T) {
	_, err := NewDelta([]int{1, 1}, []int{1})
	assert.True(t, errors.IsInvalidArgument(err))
	_, err = NewDelta(nil, []int{2, 3, 2})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestDeltaHelpers(t *testing.T) {
	d, err := NewDelta([]int{5, 6}, []int{5, 6})
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
	assert.Equal(t, []int{0, 1}, d.ConservedOld())
}
