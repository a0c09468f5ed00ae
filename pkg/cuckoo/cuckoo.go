// Package cuckoo implements a generic Cuckoo filter, grounded on the
// original implementation's cuckoo_filter.hpp: each element is reduced to
// a small fingerprint stored in one of two candidate buckets, with
// relocation ("kicking") when both candidate buckets are full.
package cuckoo

import (
	"math"

	"github.com/dolthub/maphash"

	"github.com/flier/cmf/pkg/opt"
)

const maxKicks = 500

// Filter is a Cuckoo filter over elements of type T.
type Filter[T comparable] struct {
	buckets    [][]uint8
	bucketSize int
	hasher     maphash.Hasher[T]
	fpHasher   maphash.Hasher[uint8]
	uniform    func() float64
}

// New constructs a Filter with bucketCount buckets of bucketSize entries
// each. uniform must return a value in [0,1); it backs the random
// eviction choice the original makes when both candidate buckets are
// full. hasher fixes the element hasher to a known value (Some), so two
// such filters compute the same fingerprint and primary bucket for an
// element, or draws a fresh one (None). The hasher behind the alternate
// bucket is drawn fresh for every filter, so two filters can still place
// a relocated entry in different buckets.
func New[T comparable](bucketCount, bucketSize int, uniform func() float64, hasher opt.Option[maphash.Hasher[T]]) *Filter[T] {
	buckets := make([][]uint8, bucketCount)
	for i := range buckets {
		buckets[i] = make([]uint8, bucketSize)
	}

	return &Filter[T]{
		buckets:    buckets,
		bucketSize: bucketSize,
		hasher:     hasher.UnwrapOrElse(maphash.NewHasher[T]),
		fpHasher:   maphash.NewHasher[uint8](),
		uniform:    uniform,
	}
}

// fingerprint reduces an element to a non-zero 8-bit tag; 0 is reserved
// to mean "empty entry".
func (f *Filter[T]) fingerprint(element T) uint8 {
	h := f.hasher.Hash(element)
	fp := uint8(h & 0xff)
	if fp == 0 {
		fp = 1
	}
	return fp
}

func (f *Filter[T]) primaryIndex(element T) int {
	return int(f.hasher.Hash(element) % uint64(len(f.buckets)))
}

// altIndex computes the partner bucket of index for an entry with
// fingerprint fp by reflecting index about a hash of fp modulo the bucket
// count: (h - index) mod n is its own inverse for any bucket count n, so
// applying altIndex twice recovers the original bucket, the relationship
// the original's h2 = h1 ^ hash(fp) relies on.
func (f *Filter[T]) altIndex(index int, fp uint8) int {
	n := uint64(len(f.buckets))
	h := f.fpHasher.Hash(fp) % n
	return int((h + n - uint64(index)) % n)
}

func spaceIn(bucket []uint8) int {
	for i, v := range bucket {
		if v == 0 {
			return i
		}
	}
	return -1
}

// Add inserts element into the filter, relocating existing entries up to
// maxKicks times if both candidate buckets are full. It reports whether
// the insertion succeeded.
func (f *Filter[T]) Add(element T) bool {
	fp := f.fingerprint(element)
	i1 := f.primaryIndex(element)
	i2 := f.altIndex(i1, fp)

	for kicks := 0; kicks < maxKicks; kicks++ {
		if s := spaceIn(f.buckets[i1]); s >= 0 {
			f.buckets[i1][s] = fp
			return true
		}
		if s := spaceIn(f.buckets[i2]); s >= 0 {
			f.buckets[i2][s] = fp
			return true
		}

		i := i1
		if f.uniform() > 0.5 {
			i = i2
		}

		slot := int(math.Floor(f.uniform() * float64(f.bucketSize)))
		if slot >= f.bucketSize {
			slot = f.bucketSize - 1
		}

		fp, f.buckets[i][slot] = f.buckets[i][slot], fp
		i1 = i
		i2 = f.altIndex(i1, fp)
	}

	return false
}

// Lookup reports whether element is possibly in the filter.
func (f *Filter[T]) Lookup(element T) bool {
	_, _, ok := f.search(element)
	return ok
}

// Remove deletes one occurrence of element from the filter, if present.
func (f *Filter[T]) Remove(element T) bool {
	bucket, entry, ok := f.search(element)
	if !ok {
		return false
	}

	f.buckets[bucket][entry] = 0

	return true
}

func (f *Filter[T]) search(element T) (bucket, entry int, ok bool) {
	fp := f.fingerprint(element)
	i1 := f.primaryIndex(element)
	i2 := f.altIndex(i1, fp)

	for _, i := range [2]int{i1, i2} {
		for j, v := range f.buckets[i] {
			if v == fp {
				return i, j, true
			}
		}
	}

	return 0, 0, false
}

// Clear empties every bucket.
func (f *Filter[T]) Clear() {
	for _, bucket := range f.buckets {
		for i := range bucket {
			bucket[i] = 0
		}
	}
}
