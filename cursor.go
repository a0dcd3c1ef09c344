package ndimg

// A Cursor is a single-pass traversal of every sample of a Container in the
// container's native order.
//
// A new Cursor is fresh: it is not positioned on any sample. The first call
// to Next positions it on the first sample, subsequent calls move it to the
// following samples, and once all samples have been visited Next returns
// false and the cursor is exhausted. Value, SetValue, and Coord return
// ErrInvalidCursorState unless the cursor is positioned.
//
// Cursors are independent of each other. A Cursor must not be used
// concurrently from multiple goroutines.
type Cursor[T any] interface {
	// Next advances the cursor and reports whether it is positioned on a
	// sample.
	Next() bool

	// HasNext reports whether a further call to Next would position the
	// cursor on a sample. It does not change the cursor's state.
	HasNext() bool

	// Value returns the sample at the cursor.
	Value() (T, error)

	// SetValue sets the sample at the cursor.
	SetValue(value T) error

	// Coord returns a copy of the coordinate of the sample at the cursor.
	Coord() (Coord, error)

	// Localizing reports whether the cursor updates its coordinate on every
	// advance.
	Localizing() bool

	// Reset returns the cursor to its fresh state.
	Reset()
}

// A cursorState is the fresh/positioned/exhausted state machine common to all
// cursors. visited is -1 when fresh, the index of the current sample in
// native order when positioned, and count when exhausted.
type cursorState struct {
	visited int
	count   int
}

func newCursorState(count int) cursorState {
	return cursorState{
		visited: -1,
		count:   count,
	}
}

func (s *cursorState) HasNext() bool {
	return s.visited+1 < s.count
}

func (s *cursorState) Reset() {
	s.visited = -1
}

// advance moves s to the next sample and reports whether s is positioned.
func (s *cursorState) advance() bool {
	if s.visited < s.count {
		s.visited++
	}
	return s.visited < s.count
}

func (s *cursorState) positioned() bool {
	return 0 <= s.visited && s.visited < s.count
}
