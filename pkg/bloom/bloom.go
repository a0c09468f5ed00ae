// Package bloom implements a generic Bloom filter, grounded on the
// original implementation's bloom_filter.hpp: a fixed-size bit array
// tested and set by a small number of independent hash functions.
//
// Rather than requiring the caller to supply hash_count distinct hash
// functions, Filter derives all of them from a single maphash.Hasher via
// double hashing (Kirsch-Mitzenmacher): g_i(x) = h1(x) + i*h2(x).
package bloom

import (
	"github.com/dolthub/maphash"

	"github.com/flier/cmf/pkg/opt"
)

// Filter is a Bloom filter over elements of type T.
type Filter[T comparable] struct {
	bits      []uint64
	size      uint
	hashCount uint
	hasher    maphash.Hasher[T]
}

// New constructs a Filter with size bits and hashCount hash functions.
// Both must be at least 1. hasher lets two filters built from the same
// Some(seed) agree on bit positions for the same elements (useful when
// merging filters built by independent workers); None draws a fresh
// random hasher.
func New[T comparable](size, hashCount uint, hasher opt.Option[maphash.Hasher[T]]) *Filter[T] {
	if size < 1 {
		size = 1
	}
	if hashCount < 1 {
		hashCount = 1
	}

	return &Filter[T]{
		bits:      make([]uint64, (size+63)/64),
		size:      size,
		hashCount: hashCount,
		hasher:    hasher.UnwrapOrElse(maphash.NewHasher[T]),
	}
}

func (f *Filter[T]) indices(element T) (h1, h2 uint64) {
	sum := f.hasher.Hash(element)
	h1 = sum
	h2 = (sum >> 32) | (sum << 32)
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// Add inserts element into the filter.
func (f *Filter[T]) Add(element T) {
	h1, h2 := f.indices(element)
	for i := uint(0); i < f.hashCount; i++ {
		f.setBit((h1 + uint64(i)*h2) % uint64(f.size))
	}
}

// Lookup reports whether element is possibly in the filter: false is
// certain, true may be a false positive.
func (f *Filter[T]) Lookup(element T) bool {
	h1, h2 := f.indices(element)
	for i := uint(0); i < f.hashCount; i++ {
		if !f.getBit((h1 + uint64(i)*h2) % uint64(f.size)) {
			return false
		}
	}
	return true
}

// Clear resets every bit to zero.
func (f *Filter[T]) Clear() {
	for i := range f.bits {
		f.bits[i] = 0
	}
}

func (f *Filter[T]) setBit(index uint64) {
	f.bits[index/64] |= 1 << (index % 64)
}

func (f *Filter[T]) getBit(index uint64) bool {
	return f.bits[index/64]&(1<<(index%64)) != 0
}
