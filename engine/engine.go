// Package engine is a small in-process data-parallel executor. A Dataset is
// split into partitions; stage functions run one goroutine per partition
// (bounded by the worker count) and keyed stages shuffle records to the
// partition that owns their key, so grouped reductions only ever see
// complete groups.
package engine

import (
	"context"
	"hash/maphash"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const maxDefaultWorkers = 16

// Engine holds the parallelism settings shared by every Dataset it creates.
type Engine struct {
	workers    int
	partitions int
	seed       maphash.Seed
}

// New returns an engine. Non-positive arguments fall back to runtime.NumCPU
// (capped at 16) workers and twice as many partitions.
func New(workers, partitions int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > maxDefaultWorkers {
			workers = maxDefaultWorkers
		}
	}
	if partitions <= 0 {
		partitions = workers * 2
	}
	return &Engine{workers: workers, partitions: partitions, seed: maphash.MakeSeed()}
}

func (e *Engine) Workers() int    { return e.workers }
func (e *Engine) Partitions() int { return e.partitions }

// run calls fn for every partition index in [0, n) on at most e.workers
// goroutines. The first error cancels the remaining partitions.
func (e *Engine) run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Dataset is an immutable, partitioned collection.
type Dataset[T any] struct {
	eng   *Engine
	parts [][]T
}

// Parallelize splits items into the engine's partition count, keeping their
// order across the concatenated partitions.
func Parallelize[T any](e *Engine, items []T) *Dataset[T] {
	n := e.partitions
	if n > len(items) {
		n = len(items)
	}
	if n == 0 {
		return &Dataset[T]{eng: e}
	}
	parts := make([][]T, n)
	size, rem := len(items)/n, len(items)%n
	off := 0
	for i := range parts {
		k := size
		if i < rem {
			k++
		}
		parts[i] = items[off : off+k : off+k]
		off += k
	}
	return &Dataset[T]{eng: e, parts: parts}
}

func (d *Dataset[T]) NumPartitions() int { return len(d.parts) }

func (d *Dataset[T]) Count() int {
	n := 0
	for _, p := range d.parts {
		n += len(p)
	}
	return n
}

// Collect concatenates the partitions in order.
func (d *Dataset[T]) Collect() []T {
	out := make([]T, 0, d.Count())
	for _, p := range d.parts {
		out = append(out, p...)
	}
	return out
}

// FlatMap applies fn to every record. Partitioning is preserved.
func FlatMap[T, U any](ctx context.Context, d *Dataset[T], fn func(T) ([]U, error)) (*Dataset[U], error) {
	out := make([][]U, len(d.parts))
	err := d.eng.run(ctx, len(d.parts), func(_ context.Context, i int) error {
		var res []U
		for _, rec := range d.parts[i] {
			us, err := fn(rec)
			if err != nil {
				return err
			}
			res = append(res, us...)
		}
		out[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dataset[U]{eng: d.eng, parts: out}, nil
}

// Map applies a stateless transform to every record.
func Map[T, U any](ctx context.Context, d *Dataset[T], fn func(T) U) (*Dataset[U], error) {
	out := make([][]U, len(d.parts))
	err := d.eng.run(ctx, len(d.parts), func(_ context.Context, i int) error {
		res := make([]U, len(d.parts[i]))
		for j, rec := range d.parts[i] {
			res[j] = fn(rec)
		}
		out[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dataset[U]{eng: d.eng, parts: out}, nil
}

// Filter keeps the records for which keep returns true.
func Filter[T any](ctx context.Context, d *Dataset[T], keep func(T) bool) (*Dataset[T], error) {
	return FlatMap(ctx, d, func(rec T) ([]T, error) {
		if keep(rec) {
			return []T{rec}, nil
		}
		return nil, nil
	})
}
