package ndimg

import "fmt"

// A Blocked is a Container that partitions its interval into hypercube tiles
// with a uniform edge length. Each tile owns a contiguous buffer in which
// dimension 0 varies fastest. Tiles on the upper edges of the interval are
// truncated to the interval.
type Blocked[T any] struct {
	interval    Interval
	min         []int
	blockEdge   int
	tilesPerDim []int
	tileStrides []int
	tiles       []*tile[T]
}

// A tile is a single block of a Blocked. origin is relative to the interval's
// minimum.
type tile[T any] struct {
	origin  []int
	extents []int
	strides []int
	data    []T
}

// NewBlocked returns a new Blocked covering interval with tiles of edge
// length blockEdge and every sample set to fill.
func NewBlocked[T any](interval Interval, blockEdge int, fill T) (*Blocked[T], error) {
	if blockEdge <= 0 {
		return nil, fmt.Errorf("%w: block edge %d", ErrInvalidConfig, blockEdge)
	}
	if interval.NumDimensions() == 0 {
		return nil, fmt.Errorf("%w: zero dimensionality", ErrInvalidInterval)
	}
	extents := interval.Extents()
	if _, err := bufferSize[T](extents); err != nil {
		return nil, err
	}

	n := len(extents)
	tilesPerDim := make([]int, n)
	for d, extent := range extents {
		tilesPerDim[d] = (extent-1)/blockEdge + 1
	}
	numTiles, ok := checkedProduct(tilesPerDim)
	if !ok {
		return nil, fmt.Errorf("%w: %v tiles overflows int", ErrAllocation, tilesPerDim)
	}

	b := &Blocked[T]{
		interval:    interval,
		min:         interval.Mins(),
		blockEdge:   blockEdge,
		tilesPerDim: tilesPerDim,
		tileStrides: rowMajorStrides(tilesPerDim),
		tiles:       make([]*tile[T], numTiles),
	}
	tileCoord := make([]int, n)
	for i := range b.tiles {
		decompose(i, tilesPerDim, tileCoord)
		origin := make([]int, n)
		tileExtents := make([]int, n)
		for d := range origin {
			origin[d] = tileCoord[d] * blockEdge
			tileExtents[d] = min(blockEdge, extents[d]-origin[d])
		}
		size, _ := checkedProduct(tileExtents)
		b.tiles[i] = &tile[T]{
			origin:  origin,
			extents: tileExtents,
			strides: rowMajorStrides(tileExtents),
			data:    newBuffer(size, fill),
		}
	}
	return b, nil
}

func (b *Blocked[T]) Interval() Interval {
	return b.interval
}

// BlockEdge returns the edge length of b's tiles.
func (b *Blocked[T]) BlockEdge() int {
	return b.blockEdge
}

// NumTiles returns the number of tiles in b.
func (b *Blocked[T]) NumTiles() int {
	return len(b.tiles)
}

// TilesPerDimension returns the number of tiles along each dimension.
func (b *Blocked[T]) TilesPerDimension() []int {
	return append([]int(nil), b.tilesPerDim...)
}

// TileInterval returns the interval covered by the tile with index i, where
// tiles are numbered in native order.
func (b *Blocked[T]) TileInterval(i int) Interval {
	t := b.tiles[i]
	min := make([]int, len(t.origin))
	max := make([]int, len(t.origin))
	for d := range min {
		min[d] = b.min[d] + t.origin[d]
		max[d] = min[d] + t.extents[d] - 1
	}
	return Interval{min: min, max: max}
}

func (b *Blocked[T]) Get(coord Coord) (T, error) {
	if err := b.interval.checkBounds(coord); err != nil {
		var zero T
		return zero, err
	}
	t, index := b.locate(coord)
	return t.data[index], nil
}

func (b *Blocked[T]) Set(coord Coord, value T) error {
	if err := b.interval.checkBounds(coord); err != nil {
		return err
	}
	t, index := b.locate(coord)
	t.data[index] = value
	return nil
}

func (b *Blocked[T]) Cursor() Cursor[T] {
	return b.newCursor(false)
}

func (b *Blocked[T]) LocalizingCursor() Cursor[T] {
	return b.newCursor(true)
}

func (b *Blocked[T]) RandomAccess() *RandomAccess[T] {
	return newRandomAccess[T](b)
}

// locate returns the tile containing coord, which must be within b, and the
// index of coord in the tile's buffer.
func (b *Blocked[T]) locate(coord Coord) (*tile[T], int) {
	tileIndex := 0
	for d, x := range coord {
		tileIndex += ((x - b.min[d]) / b.blockEdge) * b.tileStrides[d]
	}
	t := b.tiles[tileIndex]
	index := 0
	for d, x := range coord {
		index += ((x - b.min[d]) % b.blockEdge) * t.strides[d]
	}
	return t, index
}

func (b *Blocked[T]) newCursor(localizing bool) *blockedCursor[T] {
	c := &blockedCursor[T]{
		cursorState: newCursorState(b.interval.Size()),
		blocked:     b,
		localizing:  localizing,
	}
	if localizing {
		c.pos = make([]int, len(b.min))
	}
	return c
}

// A blockedCursor visits the tiles of a Blocked in tile index order and the
// samples of each tile in buffer order. pos is the position within the current
// tile and is only maintained if localizing is true.
type blockedCursor[T any] struct {
	cursorState
	blocked    *Blocked[T]
	localizing bool
	tileIndex  int
	index      int
	pos        []int
}

func (c *blockedCursor[T]) Next() bool {
	if !c.advance() {
		return false
	}
	if c.visited == 0 {
		c.tileIndex = 0
		c.index = 0
		if c.localizing {
			clear(c.pos)
		}
		return true
	}
	c.index++
	if t := c.blocked.tiles[c.tileIndex]; c.index < len(t.data) {
		if c.localizing {
			increment(c.pos, t.extents)
		}
		return true
	}
	c.tileIndex++
	c.index = 0
	if c.localizing {
		clear(c.pos)
	}
	return true
}

func (c *blockedCursor[T]) Value() (T, error) {
	if !c.positioned() {
		var zero T
		return zero, ErrInvalidCursorState
	}
	return c.blocked.tiles[c.tileIndex].data[c.index], nil
}

func (c *blockedCursor[T]) SetValue(value T) error {
	if !c.positioned() {
		return ErrInvalidCursorState
	}
	c.blocked.tiles[c.tileIndex].data[c.index] = value
	return nil
}

func (c *blockedCursor[T]) Coord() (Coord, error) {
	if !c.positioned() {
		return nil, ErrInvalidCursorState
	}
	t := c.blocked.tiles[c.tileIndex]
	coord := make(Coord, len(t.extents))
	if c.localizing {
		copy(coord, c.pos)
	} else {
		decompose(c.index, t.extents, coord)
	}
	for d := range coord {
		coord[d] += c.blocked.min[d] + t.origin[d]
	}
	return coord, nil
}

func (c *blockedCursor[T]) Localizing() bool {
	return c.localizing
}
