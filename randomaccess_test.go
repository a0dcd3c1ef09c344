package ndimg_test

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-ndimg"
)

func TestRandomAccess(t *testing.T) {
	for _, container := range newTestContainers(t, ndimg.MustNewIntervalFromExtents(5, 3), 2) {
		randomAccess1 := container.RandomAccess()
		randomAccess2 := container.RandomAccess()
		assert.Equal(t, ndimg.Coord{0, 0}, randomAccess1.Position())

		coord := ndimg.Coord{4, 2}
		randomAccess1.SetPosition(coord)
		coord[0] = 0
		assert.Equal(t, ndimg.Coord{4, 2}, randomAccess1.Position())
		assert.NoError(t, randomAccess1.Set(42))

		randomAccess2.SetPosition(ndimg.Coord{3, 2})
		value, err := randomAccess2.Get()
		assert.NoError(t, err)
		assert.Equal(t, 0, value)
		randomAccess2.Move(0, 1)
		value, err = randomAccess2.Get()
		assert.NoError(t, err)
		assert.Equal(t, 42, value)

		// Positions outside the interval are only rejected on access.
		randomAccess1.Move(0, 1)
		assert.Equal(t, ndimg.Coord{5, 2}, randomAccess1.Position())
		_, err = randomAccess1.Get()
		assert.True(t, errors.Is(err, ndimg.ErrOutOfBounds))
		assert.True(t, errors.Is(randomAccess1.Set(1), ndimg.ErrOutOfBounds))
		randomAccess1.Move(0, -5)
		randomAccess1.Move(1, -2)
		value, err = randomAccess1.Get()
		assert.NoError(t, err)
		assert.Equal(t, 0, value)

		randomAccess1.SetPosition(ndimg.Coord{5, 0})
		_, err = randomAccess1.Get()
		assert.True(t, errors.Is(err, ndimg.ErrOutOfBounds))
	}
}
