package ndimg

import (
	"fmt"
	"math"
	"strings"
)

// A Coord is a coordinate in integer N-space. Component d is the position
// along dimension d.
type Coord []int

// Clone returns a copy of c.
func (c Coord) Clone() Coord {
	return append(Coord(nil), c...)
}

// An Interval is a finite, axis-aligned, discrete region of integer N-space.
// The zero value is not a valid Interval.
type Interval struct {
	min []int
	max []int
}

// NewInterval returns a new Interval with the given inclusive bounds.
func NewInterval(min, max []int) (Interval, error) {
	switch {
	case len(min) == 0:
		return Interval{}, fmt.Errorf("%w: zero dimensionality", ErrInvalidInterval)
	case len(min) != len(max):
		return Interval{}, fmt.Errorf("%w: %d minimums, %d maximums", ErrInvalidInterval, len(min), len(max))
	}
	for d := range min {
		if max[d] < min[d] {
			return Interval{}, fmt.Errorf("%w: dimension %d: max %d < min %d", ErrInvalidInterval, d, max[d], min[d])
		}
		// The extent max-min+1 must be representable as an int.
		if span := max[d] - min[d]; span < 0 || span == math.MaxInt {
			return Interval{}, fmt.Errorf("%w: dimension %d: extent of %d..%d overflows int", ErrInvalidInterval, d, min[d], max[d])
		}
	}
	return Interval{
		min: append([]int(nil), min...),
		max: append([]int(nil), max...),
	}, nil
}

// NewIntervalFromExtents returns a new Interval with minimum zero in every
// dimension and the given extents.
func NewIntervalFromExtents(extents ...int) (Interval, error) {
	if len(extents) == 0 {
		return Interval{}, fmt.Errorf("%w: zero dimensionality", ErrInvalidInterval)
	}
	min := make([]int, len(extents))
	max := make([]int, len(extents))
	for d, extent := range extents {
		if extent <= 0 {
			return Interval{}, fmt.Errorf("%w: dimension %d: extent %d", ErrInvalidInterval, d, extent)
		}
		max[d] = extent - 1
	}
	return Interval{min: min, max: max}, nil
}

// MustNewIntervalFromExtents is like NewIntervalFromExtents but panics on
// error.
func MustNewIntervalFromExtents(extents ...int) Interval {
	interval, err := NewIntervalFromExtents(extents...)
	if err != nil {
		panic(err)
	}
	return interval
}

// NumDimensions returns the dimensionality of i.
func (i Interval) NumDimensions() int {
	return len(i.min)
}

// Min returns the minimum of dimension d.
func (i Interval) Min(d int) int {
	return i.min[d]
}

// Max returns the inclusive maximum of dimension d.
func (i Interval) Max(d int) int {
	return i.max[d]
}

// Extent returns the number of samples along dimension d.
func (i Interval) Extent(d int) int {
	return i.max[d] - i.min[d] + 1
}

func (i Interval) Mins() []int {
	return append([]int(nil), i.min...)
}

func (i Interval) Maxs() []int {
	return append([]int(nil), i.max...)
}

func (i Interval) Extents() []int {
	extents := make([]int, len(i.min))
	for d := range extents {
		extents[d] = i.Extent(d)
	}
	return extents
}

// Size returns the total number of samples in i. The result is only
// meaningful if it does not overflow, which is guaranteed for the Interval of
// any successfully created container. The zero Interval has size 0.
func (i Interval) Size() int {
	if len(i.min) == 0 {
		return 0
	}
	size := 1
	for d := range i.min {
		size *= i.Extent(d)
	}
	return size
}

// Contains returns whether coord lies within i.
func (i Interval) Contains(coord Coord) bool {
	if len(coord) != len(i.min) {
		return false
	}
	for d, x := range coord {
		if x < i.min[d] || i.max[d] < x {
			return false
		}
	}
	return true
}

// Equal returns whether i and other have identical bounds.
func (i Interval) Equal(other Interval) bool {
	if len(i.min) != len(other.min) {
		return false
	}
	for d := range i.min {
		if i.min[d] != other.min[d] || i.max[d] != other.max[d] {
			return false
		}
	}
	return true
}

// Translate returns i shifted by offset. It returns an error wrapping
// ErrOutOfBounds if offset has the wrong dimensionality and one wrapping
// ErrInvalidInterval if a shifted bound overflows int.
func (i Interval) Translate(offset Coord) (Interval, error) {
	if len(offset) != len(i.min) {
		return Interval{}, fmt.Errorf("%w: %d-dimensional offset %v for %d-dimensional interval", ErrOutOfBounds, len(offset), offset, len(i.min))
	}
	min := make([]int, len(i.min))
	max := make([]int, len(i.max))
	for d := range min {
		min[d] = i.min[d] + offset[d]
		max[d] = i.max[d] + offset[d]
		if (offset[d] > 0 && max[d] < i.max[d]) || (offset[d] < 0 && min[d] > i.min[d]) {
			return Interval{}, fmt.Errorf("%w: %s translated by %v overflows int", ErrInvalidInterval, i, offset)
		}
	}
	return Interval{min: min, max: max}, nil
}

// String returns a human-readable representation of i, e.g. [0..4, 0..2].
func (i Interval) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for d := range i.min {
		if d > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d..%d", i.min[d], i.max[d])
	}
	sb.WriteByte(']')
	return sb.String()
}

// checkBounds returns an error wrapping ErrOutOfBounds if coord is not in i.
func (i Interval) checkBounds(coord Coord) error {
	if len(coord) != len(i.min) {
		return fmt.Errorf("%w: %d-dimensional coordinate %v in %d-dimensional interval", ErrOutOfBounds, len(coord), coord, len(i.min))
	}
	if !i.Contains(coord) {
		return fmt.Errorf("%w: %v not in %s", ErrOutOfBounds, coord, i)
	}
	return nil
}

// checkedProduct returns the product of factors and whether it did not
// overflow. It returns false if any factor is not positive.
func checkedProduct(factors []int) (int, bool) {
	product := 1
	for _, factor := range factors {
		if factor <= 0 || factor > math.MaxInt/product {
			return 0, false
		}
		product *= factor
	}
	return product, true
}

// rowMajorStrides returns the strides of a buffer with the given extents in
// which dimension 0 varies fastest.
func rowMajorStrides(extents []int) []int {
	strides := make([]int, len(extents))
	stride := 1
	for d, extent := range extents {
		strides[d] = stride
		stride *= extent
	}
	return strides
}

// decompose sets pos to the coordinates of index in a buffer with the given
// extents, dimension 0 fastest.
func decompose(index int, extents []int, pos []int) {
	for d, extent := range extents {
		pos[d] = index % extent
		index /= extent
	}
}

// increment advances pos to the next coordinate in a buffer with the given
// extents, dimension 0 fastest, wrapping to zero after the last coordinate.
func increment(pos, extents []int) {
	for d := range pos {
		pos[d]++
		if pos[d] < extents[d] {
			return
		}
		pos[d] = 0
	}
}
