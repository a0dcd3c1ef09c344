package ndimg

import "errors"

var (
	ErrInvalidInterval    = errors.New("ndimg: invalid interval")
	ErrInvalidConfig      = errors.New("ndimg: invalid configuration")
	ErrAllocation         = errors.New("ndimg: allocation too large")
	ErrOutOfBounds        = errors.New("ndimg: coordinate out of bounds")
	ErrInvalidCursorState = errors.New("ndimg: cursor not positioned")
)
