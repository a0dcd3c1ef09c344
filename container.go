package ndimg

// A Container owns the samples of an Interval and maps logical coordinates to
// its storage. Containers differ only in their storage layout and hence in
// the native order in which their cursors visit samples.
//
// Containers do no locking. Cursors and RandomAccesses from the same
// Container may be used from different goroutines only if they write to
// disjoint coordinates.
type Container[T any] interface {
	// Interval returns the interval covered by the container.
	Interval() Interval

	// Get returns the sample at coord.
	Get(coord Coord) (T, error)

	// Set sets the sample at coord.
	Set(coord Coord, value T) error

	// Cursor returns a new cursor that tracks only its position in the
	// container's native order. The coordinate is computed on demand.
	Cursor() Cursor[T]

	// LocalizingCursor returns a new cursor that updates its coordinate on
	// every advance.
	LocalizingCursor() Cursor[T]

	// RandomAccess returns a new, unpositioned RandomAccess.
	RandomAccess() *RandomAccess[T]
}

// NewCursor returns a new cursor over c, localizing if localizing is true.
func NewCursor[T any](c Container[T], localizing bool) Cursor[T] {
	if localizing {
		return c.LocalizingCursor()
	}
	return c.Cursor()
}

var (
	_ Container[float32] = &Flat[float32]{}
	_ Container[float32] = &Blocked[float32]{}
)
