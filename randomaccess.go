package ndimg

// A RandomAccess reads and writes the sample at an explicitly set position in
// a Container. The position is only checked against the container's interval
// when a sample is read or written, so it may be moved outside the interval
// in between.
type RandomAccess[T any] struct {
	container Container[T]
	pos       Coord
}

func newRandomAccess[T any](c Container[T]) *RandomAccess[T] {
	return &RandomAccess[T]{
		container: c,
		pos:       make(Coord, c.Interval().NumDimensions()),
	}
}

// SetPosition sets the position of a to a copy of coord.
func (a *RandomAccess[T]) SetPosition(coord Coord) {
	a.pos = append(a.pos[:0], coord...)
}

// Move moves a by delta along dimension d.
func (a *RandomAccess[T]) Move(d, delta int) {
	a.pos[d] += delta
}

// Position returns a copy of a's position.
func (a *RandomAccess[T]) Position() Coord {
	return a.pos.Clone()
}

// Get returns the sample at a's position.
func (a *RandomAccess[T]) Get() (T, error) {
	return a.container.Get(a.pos)
}

// Set sets the sample at a's position.
func (a *RandomAccess[T]) Set(value T) error {
	return a.container.Set(a.pos, value)
}
