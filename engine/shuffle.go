package engine

import (
	"context"
	"hash/maphash"
)

// Pair is a keyed record.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// ordered is an insertion-ordered map, so partition contents only depend on
// the input order and never on map iteration.
type ordered[K comparable, V any] struct {
	idx  map[K]int
	keys []K
	vals []V
}

func newOrdered[K comparable, V any]() *ordered[K, V] {
	return &ordered[K, V]{idx: map[K]int{}}
}

// merge stores v under k, combining with an existing value when combine is
// non-nil. It reports whether k was new.
func (o *ordered[K, V]) merge(k K, v V, combine func(V, V) V) bool {
	if i, ok := o.idx[k]; ok {
		if combine != nil {
			o.vals[i] = combine(o.vals[i], v)
		}
		return false
	}
	o.idx[k] = len(o.keys)
	o.keys = append(o.keys, k)
	o.vals = append(o.vals, v)
	return true
}

func owner[K comparable](seed maphash.Seed, k K, n int) int {
	return int(maphash.Comparable(seed, k) % uint64(n))
}

// shuffle runs local per partition (map side), routes every resulting pair
// to the partition that owns its key and then runs reduce over the pairs
// each partition received, visiting source partitions in order.
func shuffle[K comparable, V, W any](
	ctx context.Context,
	e *Engine,
	parts [][]Pair[K, V],
	local func([]Pair[K, V]) *ordered[K, W],
	reduce func([][]Pair[K, W]) []Pair[K, W],
) ([][]Pair[K, W], error) {
	n := e.partitions
	buckets := make([][][]Pair[K, W], len(parts))

	err := e.run(ctx, len(parts), func(_ context.Context, i int) error {
		o := local(parts[i])
		b := make([][]Pair[K, W], n)
		for j, k := range o.keys {
			p := owner(e.seed, k, n)
			b[p] = append(b[p], Pair[K, W]{Key: k, Value: o.vals[j]})
		}
		buckets[i] = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([][]Pair[K, W], n)
	err = e.run(ctx, n, func(_ context.Context, p int) error {
		in := make([][]Pair[K, W], len(buckets))
		for i := range buckets {
			in[i] = buckets[i][p]
		}
		out[p] = reduce(in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReduceByKey merges all values sharing a key with fn, which must be
// associative and commutative: values are combined per partition first and
// across partitions afterwards.
func ReduceByKey[K comparable, V any](ctx context.Context, d *Dataset[Pair[K, V]], fn func(V, V) V) (*Dataset[Pair[K, V]], error) {
	local := func(part []Pair[K, V]) *ordered[K, V] {
		o := newOrdered[K, V]()
		for _, p := range part {
			o.merge(p.Key, p.Value, fn)
		}
		return o
	}
	reduce := func(in [][]Pair[K, V]) []Pair[K, V] {
		o := newOrdered[K, V]()
		for _, part := range in {
			for _, p := range part {
				o.merge(p.Key, p.Value, fn)
			}
		}
		return o.pairs()
	}
	parts, err := shuffle(ctx, d.eng, d.parts, local, reduce)
	if err != nil {
		return nil, err
	}
	return &Dataset[Pair[K, V]]{eng: d.eng, parts: parts}, nil
}

// GroupByKey collects every value of a key into one slice. Values keep their
// input order.
func GroupByKey[K comparable, V any](ctx context.Context, d *Dataset[Pair[K, V]]) (*Dataset[Pair[K, []V]], error) {
	appendAll := func(a, b []V) []V { return append(a, b...) }
	local := func(part []Pair[K, V]) *ordered[K, []V] {
		o := newOrdered[K, []V]()
		for _, p := range part {
			o.merge(p.Key, []V{p.Value}, appendAll)
		}
		return o
	}
	reduce := func(in [][]Pair[K, []V]) []Pair[K, []V] {
		o := newOrdered[K, []V]()
		for _, part := range in {
			for _, p := range part {
				o.merge(p.Key, p.Value, appendAll)
			}
		}
		return o.pairs()
	}
	parts, err := shuffle(ctx, d.eng, d.parts, local, reduce)
	if err != nil {
		return nil, err
	}
	return &Dataset[Pair[K, []V]]{eng: d.eng, parts: parts}, nil
}

// Distinct drops records equal to an earlier one.
func Distinct[T comparable](ctx context.Context, d *Dataset[T]) (*Dataset[T], error) {
	keyed, err := Map(ctx, d, func(t T) Pair[T, struct{}] { return Pair[T, struct{}]{Key: t} })
	if err != nil {
		return nil, err
	}
	first := func(a, _ struct{}) struct{} { return a }
	reduced, err := ReduceByKey(ctx, keyed, first)
	if err != nil {
		return nil, err
	}
	return Map(ctx, reduced, func(p Pair[T, struct{}]) T { return p.Key })
}

func (o *ordered[K, V]) pairs() []Pair[K, V] {
	out := make([]Pair[K, V], len(o.keys))
	for i, k := range o.keys {
		out[i] = Pair[K, V]{Key: k, Value: o.vals[i]}
	}
	return out
}
