package ndimg_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-ndimg"
)

func TestTransform(t *testing.T) {
	interval, err := ndimg.NewInterval([]int{-3, 0, 2}, []int{13, 9, 6})
	assert.NoError(t, err)
	fn := func(coord ndimg.Coord, value int) int {
		return value + coord[0] + 100*coord[1] + 10000*coord[2]
	}

	flat, err := ndimg.NewFlat(interval, 1)
	assert.NoError(t, err)
	assert.NoError(t, flat.Transform(t.Context(), fn))
	blocked, err := ndimg.NewBlocked(interval, 4, 1)
	assert.NoError(t, err)
	assert.NoError(t, blocked.Transform(t.Context(), fn))

	for coord := range ndimg.Coords(interval) {
		expected := 1 + coord[0] + 100*coord[1] + 10000*coord[2]
		actual, err := flat.Get(coord)
		assert.NoError(t, err)
		assert.Equal(t, expected, actual)
		actual, err = blocked.Get(coord)
		assert.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
}

func TestTransformCanceled(t *testing.T) {
	interval := ndimg.MustNewIntervalFromExtents(64, 64)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	fn := func(coord ndimg.Coord, value int) int {
		return value + 1
	}

	flat, err := ndimg.NewFlat(interval, 0)
	assert.NoError(t, err)
	assert.True(t, errors.Is(flat.Transform(ctx, fn), context.Canceled))
	blocked, err := ndimg.NewBlocked(interval, 8, 0)
	assert.NoError(t, err)
	assert.True(t, errors.Is(blocked.Transform(ctx, fn), context.Canceled))
	for _, value := range flat.Data() {
		assert.Equal(t, 0, value)
	}
	for _, value := range cursorValues(t, blocked.Cursor()) {
		assert.Equal(t, 0, value)
	}
}
