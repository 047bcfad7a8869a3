package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rangeOf(id int64, start, end, cursor int) *Range {
	return &Range{ID: id, TypeID: 1, Year: 2026, Start: start, End: end, Cursor: cursor}
}

func TestPlanRange(t *testing.T) {
	t.Run("appends after contiguous ranges", func(t *testing.T) {
		ranges := []*Range{rangeOf(2, 201, 501, 220), rangeOf(1, 1, 200, 187)}

		got := PlanRange(3000, ranges, 50)

		assert.Equal(t, 502, got.Start)
		assert.Equal(t, 551, got.End)
		assert.Equal(t, 50, got.Size)
		assert.False(t, got.Clipped)
		assert.Equal(t, 501, got.Assigned)
		assert.Equal(t, 2499, got.Available)
	})

	t.Run("prefers the first gap and clips to its size", func(t *testing.T) {
		ranges := []*Range{rangeOf(1, 201, 501, 200), rangeOf(2, 700, 3000, 699)}

		got := PlanRange(3000, ranges, 250)

		assert.Equal(t, 1, got.Start)
		assert.Equal(t, 200, got.End)
		assert.Equal(t, 200, got.Size)
		assert.True(t, got.Clipped)
		assert.Equal(t, 398, got.Available)
	})

	t.Run("clips to the quota balance", func(t *testing.T) {
		got := PlanRange(120, []*Range{rangeOf(1, 1, 100, 0)}, 50)

		assert.Equal(t, 101, got.Start)
		assert.Equal(t, 120, got.End)
		assert.Equal(t, 20, got.Size)
		assert.True(t, got.Clipped)
	})

	t.Run("no balance yields a zero size suggestion", func(t *testing.T) {
		got := PlanRange(100, []*Range{rangeOf(1, 1, 100, 0)}, 10)

		assert.Equal(t, 0, got.Size)
		assert.Equal(t, 101, got.Start)
		assert.Equal(t, 100, got.End)
		assert.True(t, got.Clipped)
	})

	t.Run("unconfigured quota grants nothing", func(t *testing.T) {
		got := PlanRange(0, nil, 10)
		assert.Equal(t, 0, got.Size)
		assert.Equal(t, 1, got.Start)
		assert.True(t, got.Clipped)
	})

	t.Run("non positive size uses the default", func(t *testing.T) {
		got := PlanRange(1000, nil, 0)
		assert.Equal(t, DefaultSuggestionSize, got.Desired)
		assert.Equal(t, DefaultSuggestionSize, got.Size)
	})

	t.Run("is deterministic on the same input", func(t *testing.T) {
		ranges := []*Range{rangeOf(1, 10, 20, 9), rangeOf(2, 30, 40, 29)}
		assert.Equal(t, PlanRange(500, ranges, 15), PlanRange(500, ranges, 15))
	})
}
