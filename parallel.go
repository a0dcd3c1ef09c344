package ndimg

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// A TransformFunc returns the new value of the sample at coord. coord is
// reused between calls and must not be retained.
type TransformFunc[T any] func(coord Coord, value T) T

// Transform replaces every sample of b with the result of calling fn on it.
// Tiles are transformed concurrently, so fn must be safe to call from multiple
// goroutines. Transform stops early if ctx is canceled.
func (b *Blocked[T]) Transform(ctx context.Context, fn TransformFunc[T]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, t := range b.tiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pos := make([]int, len(t.extents))
			coord := make(Coord, len(t.extents))
			for i := range t.data {
				for d := range coord {
					coord[d] = b.min[d] + t.origin[d] + pos[d]
				}
				t.data[i] = fn(coord, t.data[i])
				increment(pos, t.extents)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Transform replaces every sample of f with the result of calling fn on it.
// The buffer is split into contiguous ranges that are transformed
// concurrently, so fn must be safe to call from multiple goroutines.
// Transform stops early if ctx is canceled.
func (f *Flat[T]) Transform(ctx context.Context, fn TransformFunc[T]) error {
	numWorkers := runtime.GOMAXPROCS(0)
	chunkSize := (len(f.data)-1)/numWorkers + 1
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(f.data); start += chunkSize {
		end := min(start+chunkSize, len(f.data))
		g.Go(func() error {
			pos := make([]int, len(f.extents))
			decompose(start, f.extents, pos)
			coord := make(Coord, len(f.extents))
			for i := start; i < end; i++ {
				if (i-start)%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				for d := range coord {
					coord[d] = f.min[d] + pos[d]
				}
				f.data[i] = fn(coord, f.data[i])
				increment(pos, f.extents)
			}
			return nil
		})
	}
	return g.Wait()
}
