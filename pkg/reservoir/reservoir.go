// Package reservoir implements streaming reservoir samplers, grounded on
// the original implementation's reservoir_sampling.hpp and
// chained_reservoir.hpp.
package reservoir

import (
	"math"

	"github.com/flier/cmf/pkg/tuple"
)

// Sampler maintains a uniform random sample of a fixed size over an
// unbounded stream, via the classic Algorithm R.
type Sampler[T any] struct {
	sample  []T
	size    int
	seen    int
	uniform func() float64
}

// New returns a Sampler holding up to size elements, drawn using uniform
// (must return a value in [0,1)).
func New[T any](size int, uniform func() float64) *Sampler[T] {
	return &Sampler[T]{sample: make([]T, 0, size), size: size, uniform: uniform}
}

// Add offers element to the sampler. It returns the index the element
// landed at, or -1 if it was not sampled.
func (s *Sampler[T]) Add(element T) int {
	idx := s.Index()
	if idx >= 0 {
		s.sample[idx] = element
	}
	return idx
}

// Index draws the slot a new element would occupy without storing
// anything, so callers that build the element lazily can skip the work
// when it would be discarded.
func (s *Sampler[T]) Index() int {
	idx := -1

	if s.seen < s.size {
		s.sample = append(s.sample, *new(T))
		idx = s.seen
	} else if s.size > 0 {
		threshold := float64(s.size) / float64(s.seen+1)
		if s.uniform() < threshold {
			idx = int(s.uniform() * float64(s.size))
			if idx >= s.size {
				idx = s.size - 1
			}
		}
	}

	s.seen++

	return idx
}

// Sample returns the current sample; its length grows to size and then
// stays fixed.
func (s *Sampler[T]) Sample() []T { return s.sample }

// Count returns the number of elements offered so far.
func (s *Sampler[T]) Count() int { return s.seen }

// Exponential is a reservoir sampler biased toward recent elements: each
// new element overwrites a uniformly chosen filled slot with probability
// equal to the fill ratio (filled slots / size) and is appended otherwise,
// so once the reservoir is full every new element replaces an existing
// one, rather than with the diminishing probability Algorithm R uses.
type Exponential[T any] struct {
	sample  []T
	size    int
	seen    int
	uniform func() float64
}

// NewExponential returns an Exponential sampler holding up to size
// elements.
func NewExponential[T any](size int, uniform func() float64) *Exponential[T] {
	return &Exponential[T]{sample: make([]T, 0, size), size: size, uniform: uniform}
}

func (e *Exponential[T]) Add(element T) int {
	idx := e.Index()
	if idx >= 0 && idx < len(e.sample) {
		e.sample[idx] = element
	} else if idx == len(e.sample) {
		e.sample = append(e.sample, element)
	}
	return idx
}

func (e *Exponential[T]) Index() int {
	fillRatio := float64(e.seen) / float64(e.size)

	var idx int
	if e.uniform() < fillRatio {
		idx = int(math.Floor(e.uniform() * float64(e.seen)))
	} else {
		idx = e.seen
		e.seen++
	}

	return idx
}

func (e *Exponential[T]) Sample() []T { return e.sample }
func (e *Exponential[T]) Count() int  { return e.seen }

// chainSlot is one reservoir slot that can grow a chain of overflow
// elements, mirroring chained_reservoir.hpp's node/next bookkeeping
// without its manual linked-list allocation.
type chainSlot[T any] struct {
	elements  []T
	timestamp uint64
	// nextSwap is the future counter value at which this slot's head
	// element is due to be replaced, drawn uniformly over the window
	// like the original's `next[i]`.
	nextSwap uint64
}

// Chained is a reservoir sampler that keeps evicted elements around in a
// per-slot chain until an explicit Obsolete call discards them, so a
// consumer can recover more than size recent elements per slot when
// needed, following chained_reservoir.hpp.
type Chained[T any] struct {
	slots   []chainSlot[T]
	counter uint64
	uniform func() float64
}

// NewChained returns a Chained sampler with size slots.
func NewChained[T any](size int, uniform func() float64) *Chained[T] {
	return &Chained[T]{slots: make([]chainSlot[T], size), uniform: uniform}
}

func (c *Chained[T]) drawSwap() uint64 {
	return c.counter + 1 + uint64(c.uniform()*float64(len(c.slots)-1)+0.5)
}

// Add offers element with the given timestamp to the sampler.
func (c *Chained[T]) Add(element T, timestamp uint64) {
	size := len(c.slots)

	if c.counter < uint64(size) {
		c.slots[c.counter] = chainSlot[T]{elements: []T{element}, timestamp: timestamp, nextSwap: c.drawSwap()}
	} else {
		threshold := float64(size) / float64(c.counter)
		if c.uniform() < threshold {
			index := int(c.uniform()*float64(size-1) + 0.5)
			c.slots[index] = chainSlot[T]{elements: []T{element}, timestamp: timestamp, nextSwap: c.drawSwap()}
		}
	}

	for i := range c.slots {
		if c.slots[i].nextSwap == c.counter {
			c.slots[i].elements = append(c.slots[i].elements, element)
			c.slots[i].nextSwap = c.drawSwap()
		}
	}

	c.counter++
}

// Obsolete discards every chained element older than timestamp from every
// slot, keeping only the most recent head per slot whose timestamp is at
// least timestamp.
func (c *Chained[T]) Obsolete(timestamp uint64) {
	for i := range c.slots {
		slot := &c.slots[i]
		if slot.timestamp >= timestamp || len(slot.elements) == 0 {
			continue
		}

		slot.elements = slot.elements[len(slot.elements)-1:]
		slot.timestamp = timestamp
	}
}

// At returns the current head element of slot i.
func (c *Chained[T]) At(i int) T { return c.slots[i].elements[len(c.slots[i].elements)-1] }

// Dated returns the current head element of slot i paired with the
// timestamp it was swapped in at, for callers that want to reason about
// recency without a second lookup.
func (c *Chained[T]) Dated(i int) tuple.Tuple2[T, uint64] {
	return tuple.New2(c.At(i), c.slots[i].timestamp)
}
