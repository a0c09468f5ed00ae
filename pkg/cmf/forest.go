// Package cmf implements the Coarse Mondrian Forest: an arena-allocated,
// memory-bounded streaming ensemble classifier.
//
// A Forest owns a fixed-capacity Arena shared by every tree it grows. The
// number of nodes is fixed by Config.CapacityBytes (divided by an estimated
// per-node size) when the forest is constructed, and trees never grow past
// it. Predict and the split paths still allocate short-lived scratch slices
// on the heap, so Config.CapacityBytes bounds the node pool, not the
// process's total memory use.
package cmf

import (
	"github.com/flier/cmf/internal/debug"
	"github.com/flier/cmf/pkg/cmf/xrand"
)

// defaultRand backs Config.Rand when the caller leaves it nil.
func defaultRand() Rand { return xrand.New() }

// Forest is a Coarse Mondrian Forest: TreeCount Mondrian trees sharing one
// Arena, trained incrementally one point at a time.
type Forest struct {
	cfg   *Config
	arena *Arena

	centroid *centroid

	totalCount int
}

// NewForest constructs a Forest from cfg, validating it and filling in
// defaults for zero-valued tunables. The arena is sized up front for
// cfg.TreeCount trees; growing beyond that requires a Tree-add reshape
// operation.
func NewForest(cfg Config) (*Forest, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Rand == nil {
		cfg.Rand = defaultRand()
	}
	if cfg.Statistics == nil {
		cfg.Statistics = func() Statistics { return noopStatistics{} }
	}

	arena := NewArena(cfg.CapacityBytes, cfg.FeatureCount, cfg.LabelCount, cfg.TreeCount)

	nodeLimit := cfg.SizeLimit
	if nodeLimit <= 0 {
		nodeLimit = defaultNodeLimit(arena, cfg.TreeCount)
	}
	if cfg.TreeManagement == Robur || cfg.TreeManagement == PausingPhoenix {
		nodeLimit = roburLimit(nodeLimit)
	}

	f := &Forest{
		cfg:      &cfg,
		arena:    arena,
		centroid: newCentroid(cfg.FeatureCount),
	}

	for i := 0; i < cfg.TreeCount; i++ {
		f.arena.trees = append(f.arena.trees, newTreeBase(nodeLimit, cfg.Statistics()))
	}

	return f, nil
}

// Config returns a copy of the forest's effective configuration, including
// any defaults NewForest filled in.
func (f *Forest) Config() Config { return *f.cfg }

// TreeCount returns the number of trees currently in the forest.
func (f *Forest) TreeCount() int { return f.arena.TreeCount() }

// Train absorbs one labelled point into every tree of the forest.
//
// It returns false if any tree could not fully absorb the point because
// the arena ran out of room (OutOfArena); the trees that did have room
// still updated. Train folds all per-tree outcomes into this single bool
// and does not report which trees fell short.
func (f *Forest) Train(features []float64, label int) bool {
	debug.Assert(len(features) == f.cfg.FeatureCount, "train: got %d features, want %d", len(features), f.cfg.FeatureCount)
	debug.Assert(label >= 0 && label < f.cfg.LabelCount, "train: label %d out of range [0,%d)", label, f.cfg.LabelCount)

	f.centroid.update(features, f.cfg.FadingCount)
	f.totalCount++

	ok := true

	for t := 0; t < f.arena.TreeCount(); t++ {
		if !f.extendTree(t, features, label) {
			ok = false
		}

		if f.cfg.EagerCounters() {
			if leaf := f.findLeaf(t, features); leaf != None {
				f.arena.eagerUpdateCounters(leaf, label)
			}
		}
	}

	if f.shouldReshape() {
		f.periodicReshape()
	}

	return ok
}

// findLeaf walks treeID from the root to the leaf features would land in,
// used after a training step to know where to start the eager counter
// climb.
func (f *Forest) findLeaf(treeID int, x []float64) int {
	tree := f.arena.Tree(treeID)
	if tree.IsEmpty() {
		return None
	}

	id := tree.Root
	for {
		node := f.arena.Node(id)
		if node.IsLeaf() {
			return id
		}
		if x[node.SplitDimension] <= node.SplitValue {
			id = node.ChildLeft
		} else {
			id = node.ChildRight
		}
	}
}

// Predict scores features against every tree and averages their posterior
// means into out, which must have length Config.LabelCount. It returns the
// argmax label.
func (f *Forest) Predict(features []float64, out []float64) int {
	debug.Assert(len(features) == f.cfg.FeatureCount, "predict: got %d features, want %d", len(features), f.cfg.FeatureCount)
	debug.Assert(len(out) == f.cfg.LabelCount, "predict: out has length %d, want %d", len(out), f.cfg.LabelCount)

	if !f.cfg.EagerCounters() {
		f.arena.lazyUpdateCounters()
	}

	for l := range out {
		out[l] = 0
	}

	treeOut := make([]float64, f.cfg.LabelCount)
	treeCount := f.arena.TreeCount()

	for t := 0; t < treeCount; t++ {
		f.predictTree(t, features, treeOut, -1)
		for l := range out {
			out[l] += treeOut[l]
		}
	}

	if treeCount > 0 {
		for l := range out {
			out[l] /= float64(treeCount)
		}
	}

	best := 0
	for l := 1; l < len(out); l++ {
		if out[l] > out[best] {
			best = l
		}
	}

	return best
}

// shouldReshape reports whether this training step lands on the periodic
// maintenance cadence: the source throttles fading and trimming to once
// every 100 points, and only when the arena is nearly exhausted.
func (f *Forest) shouldReshape() bool {
	return f.arena.Available() <= 1 && f.totalCount%100 == 0
}

func (f *Forest) periodicReshape() {
	f.FadeCounts()

	for t := 0; t < f.arena.TreeCount(); t++ {
		if f.arena.Available() >= 2 {
			break
		}

		f.Trim(t)
	}
}

// EagerCounters reports whether counters are maintained eagerly after every
// training point (true) or lazily, recomputed once before predict (false).
func (c *Config) EagerCounters() bool { return !c.LazyCounters }
