// Package xrand provides the random source abstraction consumed by the
// Mondrian split sampler and posterior engine.
//
// Every stochastic decision the forest makes — the split time E, the split
// dimension, the split value — goes through a single
// Source. Seeding a Source and replaying the same training stream against
// two otherwise-identical forests reproduces bit-identical predictions, per
// the ordering guarantee in the forest's concurrency model.
package xrand

import (
	"math"
	"math/rand/v2"
)

// Source is the random source interface peer components and the forest
// consume. It mirrors the source's original func::rand_uniform /
// func::exp / func::log contract.
type Source interface {
	// Uniform returns a uniformly distributed float64 in [0, 1).
	Uniform() float64
	// Exp samples an Exponential(rate=1) draw using -log(1-u).
	Exp() float64
}

// Expm1, Log and Exp expose the numerically stable math helpers the posterior engine
// needs, kept separate from Source because they are pure functions of their
// arguments, not draws from the stream.
var (
	Expm1 = math.Expm1
	Log   = math.Log
	Exp   = math.Exp
)

// Default is the default Source, backed by math/rand/v2.
//
// A zero Default is not ready to use; construct one with New or NewSeeded.
type Default struct {
	rng *rand.Rand
}

// New returns a Default seeded from a non-deterministic source.
func New() *Default {
	return &Default{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a Default seeded deterministically, so that two forests
// fed the same stream in the same order produce identical predictions.
func NewSeeded(seed1, seed2 uint64) *Default {
	return &Default{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (d *Default) Uniform() float64 { return d.rng.Float64() }

// Exp draws an Exponential(rate=1) variate via inversion: -log(1-u) with
// u ~ Uniform[0,1). Callers needing Exponential(rate=S) divide by S.
func (d *Default) Exp() float64 {
	u := d.rng.Float64()
	return -Log(1 - u)
}

// ExpRate draws an Exponential(rate) variate using the given Source's
// uniform stream, following the split sampler's E = -log(1-u)/rate rule.
// A non-positive rate yields +Inf, signalling "no split occurs here" to
// callers that compare E against a finite budget.
func ExpRate(s Source, rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}

	u := s.Uniform()

	return -Log(1-u) / rate
}
