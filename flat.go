package ndimg

import (
	"fmt"
	"math"
	"unsafe"
)

// maxBufferBytes is the largest single buffer a container will allocate.
const maxBufferBytes = 1 << 40

// A Flat is a Container that stores its samples in a single contiguous buffer
// in which dimension 0 varies fastest.
type Flat[T any] struct {
	interval Interval
	min      []int
	extents  []int
	strides  []int
	data     []T
}

// NewFlat returns a new Flat covering interval with every sample set to fill.
func NewFlat[T any](interval Interval, fill T) (*Flat[T], error) {
	if interval.NumDimensions() == 0 {
		return nil, fmt.Errorf("%w: zero dimensionality", ErrInvalidInterval)
	}
	extents := interval.Extents()
	size, err := bufferSize[T](extents)
	if err != nil {
		return nil, err
	}
	f := &Flat[T]{
		interval: interval,
		min:      interval.Mins(),
		extents:  extents,
		strides:  rowMajorStrides(extents),
		data:     newBuffer(size, fill),
	}
	return f, nil
}

func (f *Flat[T]) Interval() Interval {
	return f.interval
}

// Data returns f's buffer. Sample (x0, x1, ...) is at index
// (x0-min0) + (x1-min1)*extent0 + ...
func (f *Flat[T]) Data() []T {
	return f.data
}

func (f *Flat[T]) Get(coord Coord) (T, error) {
	if err := f.interval.checkBounds(coord); err != nil {
		var zero T
		return zero, err
	}
	return f.data[f.index(coord)], nil
}

func (f *Flat[T]) Set(coord Coord, value T) error {
	if err := f.interval.checkBounds(coord); err != nil {
		return err
	}
	f.data[f.index(coord)] = value
	return nil
}

func (f *Flat[T]) Cursor() Cursor[T] {
	return f.newCursor(false)
}

func (f *Flat[T]) LocalizingCursor() Cursor[T] {
	return f.newCursor(true)
}

func (f *Flat[T]) RandomAccess() *RandomAccess[T] {
	return newRandomAccess[T](f)
}

// index returns the buffer index of coord, which must be within f.
func (f *Flat[T]) index(coord Coord) int {
	index := 0
	for d, x := range coord {
		index += (x - f.min[d]) * f.strides[d]
	}
	return index
}

func (f *Flat[T]) newCursor(localizing bool) *flatCursor[T] {
	c := &flatCursor[T]{
		cursorState: newCursorState(len(f.data)),
		flat:        f,
		localizing:  localizing,
	}
	if localizing {
		c.pos = make([]int, len(f.extents))
	}
	return c
}

// A flatCursor visits the samples of a Flat in buffer order. pos, relative to
// the interval's minimum, is only maintained if localizing is true.
type flatCursor[T any] struct {
	cursorState
	flat       *Flat[T]
	localizing bool
	pos        []int
}

func (c *flatCursor[T]) Next() bool {
	if !c.advance() {
		return false
	}
	if c.localizing {
		if c.visited == 0 {
			clear(c.pos)
		} else {
			increment(c.pos, c.flat.extents)
		}
	}
	return true
}

func (c *flatCursor[T]) Value() (T, error) {
	if !c.positioned() {
		var zero T
		return zero, ErrInvalidCursorState
	}
	return c.flat.data[c.visited], nil
}

func (c *flatCursor[T]) SetValue(value T) error {
	if !c.positioned() {
		return ErrInvalidCursorState
	}
	c.flat.data[c.visited] = value
	return nil
}

func (c *flatCursor[T]) Coord() (Coord, error) {
	if !c.positioned() {
		return nil, ErrInvalidCursorState
	}
	coord := make(Coord, len(c.flat.extents))
	if c.localizing {
		copy(coord, c.pos)
	} else {
		decompose(c.visited, c.flat.extents, coord)
	}
	for d := range coord {
		coord[d] += c.flat.min[d]
	}
	return coord, nil
}

func (c *flatCursor[T]) Localizing() bool {
	return c.localizing
}

// bufferSize returns the number of samples in a buffer with the given extents,
// or an error wrapping ErrAllocation if the buffer cannot be allocated.
func bufferSize[T any](extents []int) (int, error) {
	size, ok := checkedProduct(extents)
	if !ok {
		return 0, fmt.Errorf("%w: extents %v", ErrAllocation, extents)
	}
	var zero T
	if elementSize := int(unsafe.Sizeof(zero)); elementSize > 0 {
		if size > math.MaxInt/elementSize || size*elementSize > maxBufferBytes {
			return 0, fmt.Errorf("%w: %d samples of %d bytes", ErrAllocation, size, elementSize)
		}
	}
	return size, nil
}

// newBuffer returns a new buffer of size samples set to fill.
func newBuffer[T any](size int, fill T) []T {
	data := make([]T, size)
	for i := range data {
		data[i] = fill
	}
	allocatedSamples.Add(float64(size))
	return data
}
