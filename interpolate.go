package ndimg

import (
	"fmt"
	"math"
)

// A Number is a sample type that can be interpolated.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// InterpolateNLinear returns the values of c at the real coordinates coords
// by N-linear interpolation between the 2^N surrounding samples. Samples
// outside c's interval take the value of the nearest sample on its border.
func InterpolateNLinear[T Number](c Container[T], coords [][]float64) ([]float64, error) {
	interval := c.Interval()
	n := interval.NumDimensions()
	randomAccess := c.RandomAccess()
	floors := make([]int, n)
	fractions := make([]float64, n)
	pos := make(Coord, n)
	result := make([]float64, len(coords))
	for i, coord := range coords {
		if len(coord) != n {
			return nil, fmt.Errorf("%w: %d-dimensional coordinate %v in %d-dimensional interval", ErrOutOfBounds, len(coord), coord, n)
		}
		for d, x := range coord {
			floor := math.Floor(x)
			floors[d] = int(floor)
			fractions[d] = x - floor
		}
		value := 0.0
		for corner := range 1 << n {
			weight := 1.0
			for d := range n {
				if corner&(1<<d) == 0 {
					pos[d] = floors[d]
					weight *= 1 - fractions[d]
				} else {
					pos[d] = floors[d] + 1
					weight *= fractions[d]
				}
				pos[d] = min(max(pos[d], interval.min[d]), interval.max[d])
			}
			if weight == 0 {
				continue
			}
			randomAccess.SetPosition(pos)
			sample, err := randomAccess.Get()
			if err != nil {
				return nil, err
			}
			value += weight * float64(sample)
		}
		result[i] = value
	}
	return result, nil
}
