package ndimg

import (
	"fmt"
	"iter"
)

// All returns an iterator over the coordinates and samples of c in c's native
// order.
func All[T any](c Container[T]) iter.Seq2[Coord, T] {
	return func(yield func(Coord, T) bool) {
		cursor := c.LocalizingCursor()
		for cursor.Next() {
			coord, _ := cursor.Coord()
			value, _ := cursor.Value()
			if !yield(coord, value) {
				return
			}
		}
	}
}

// Coords returns an iterator over every coordinate in interval in
// lexicographic order with dimension 0 varying fastest. The yielded Coord is
// reused between iterations; use [Coord.Clone] to retain it.
func Coords(interval Interval) iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		extents := interval.Extents()
		pos := make([]int, len(extents))
		coord := make(Coord, len(extents))
		for range interval.Size() {
			for d := range coord {
				coord[d] = interval.min[d] + pos[d]
			}
			if !yield(coord) {
				return
			}
			increment(pos, extents)
		}
	}
}

// Copy copies every sample of src into dst. src and dst must cover the same
// interval.
func Copy[T any](dst, src Container[T]) error {
	if !dst.Interval().Equal(src.Interval()) {
		return fmt.Errorf("%w: copying %s to %s", ErrInvalidInterval, src.Interval(), dst.Interval())
	}
	cursor := src.LocalizingCursor()
	randomAccess := dst.RandomAccess()
	for cursor.Next() {
		coord, err := cursor.Coord()
		if err != nil {
			return err
		}
		value, err := cursor.Value()
		if err != nil {
			return err
		}
		randomAccess.SetPosition(coord)
		if err := randomAccess.Set(value); err != nil {
			return err
		}
	}
	return nil
}
