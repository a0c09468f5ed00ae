package cmf

// extendTree absorbs one training point into treeID's tree, dispatching to
// the configured extend policy (spec.md §4.E). It returns false when the
// point could not be fully absorbed (OutOfArena).
func (f *Forest) extendTree(treeID int, x []float64, label int) bool {
	tree := f.arena.Tree(treeID)

	if tree.IsEmpty() {
		idx, ok := f.arena.Allocate()
		if !ok {
			return false
		}

		root := f.arena.Node(idx)
		root.Parent, root.ChildLeft, root.ChildRight = None, None, None
		sampleBlock(root, x, label, f.cfg.Lifetime)
		tree.Root = idx
		tree.Size++
		tree.Statistics.Update(label, label)

		return true
	}

	switch f.cfg.ExtendType {
	case ExtendNone:
		if f.arena.Available() <= 2 {
			return false
		}
		return true
	case ExtendOriginal:
		return f.extendOriginal(treeID, tree.Root, x, label)
	case ExtendPartialUpdate:
		return f.extendPartialUpdate(treeID, tree.Root, x, label)
	case ExtendGhost:
		return f.extendGhost(treeID, tree.Root, x, label)
	case ExtendCounterNoUpdate:
		return f.extendCounterNoUpdate(treeID, tree.Root, x, label)
	case ExtendBarycentre:
		return f.extendBarycentre(treeID, tree.Root, x, label)
	default:
		return true
	}
}

// sampleBlock initialises a brand new leaf holding exactly one point: its
// box collapses to x, its counter for label is bumped, and its tau is set
// to the forest's lifetime (spec.md's source: a single-element node never
// needs to sample a further split time until a second point arrives).
func sampleBlock(node *Node, x []float64, label int, lifetime float64) {
	copy(node.BoundLower, x)
	copy(node.BoundUpper, x)
	node.Counters[label]++
	node.Tau = lifetime
}

// splitDecision bundles the outcome of a sampleSplit draw plus the
// book-keeping the five extend policies all share: whether a split is
// wanted, whether it was denied by the arena or the budget policy.
type splitDecision struct {
	draw        splitDraw
	parentTau   float64
	wantsSplit  bool // parent_tau + E < node.tau
	arenaOK     bool // node_available >= 2
	budgetOK    bool // !pause_expansion
}

func (f *Forest) decideSplit(treeID, nodeID int, x []float64) splitDecision {
	node := f.arena.Node(nodeID)
	parentTau := 0.0
	if node.Parent != None {
		parentTau = f.arena.Node(node.Parent).Tau
	}

	draw := sampleSplit(f.cfg.Rand, node, x)

	d := splitDecision{
		draw:      draw,
		parentTau: parentTau,
		arenaOK:   f.arena.Available() >= 2,
		budgetOK:  !pauseExpansion(f.cfg, f.arena, treeID, nodeID),
	}
	d.wantsSplit = draw.e >= 0 && parentTau+draw.e < node.Tau

	return d
}

// introduceSplit performs the shared mechanics of inserting a new parent P
// and sibling S above node (spec.md §4.E's table row "Introduce a new
// parent and a new sibling"): P takes over node's old slot in its parent
// (or the tree root), node and S become P's two children, and S is
// initialised to hold exactly x via sampleBlock.
//
// initParentCounters lets each policy decide how P's counters start out
// (Original: min(1, node.counters); Ghost: a copy of node.counters plus one
// for the training label; PartialUpdate and
// CounterNoUpdate: left at zero, to be derived later by the counter
// maintainer).
func (f *Forest) introduceSplit(treeID, nodeID int, x []float64, label int, d splitDecision, initParentCounters func(parent, node *Node)) (newParent, newSibling int) {
	dim := chooseDimension(f.cfg.Rand, d.draw.excess, d.draw.sum)
	node := f.arena.Node(nodeID)
	splitValue, xIsUpper := splitValueFor(f.cfg.Rand, node, x, dim)

	return f.introduceSplitAt(treeID, nodeID, x, label, dim, splitValue, xIsUpper, d.parentTau+d.draw.e, initParentCounters)
}

func enlargeBox(node *Node, x []float64) {
	for i := range node.BoundLower {
		if x[i] < node.BoundLower[i] {
			node.BoundLower[i] = x[i]
		}
		if x[i] > node.BoundUpper[i] {
			node.BoundUpper[i] = x[i]
		}
	}
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// extendOriginal implements the Original policy: when no split is wanted it
// enlarges the box and descends (or bumps the leaf counter), and on a
// denied split it only enlarges the box (spec.md §4.E row "Original").
func (f *Forest) extendOriginal(treeID, nodeID int, x []float64, label int) bool {
	d := f.decideSplit(treeID, nodeID, x)
	node := f.arena.Node(nodeID)

	if d.wantsSplit && d.arenaOK && d.budgetOK {
		f.introduceSplit(treeID, nodeID, x, label, d, func(parent, n *Node) {
			for l := range parent.Counters {
				parent.Counters[l] = min1(n.Counters[l])
			}
		})
		return true
	}

	enlargeBox(node, x)

	if d.wantsSplit {
		// Split wanted but denied: no descent and no counter bump.
		return true
	}

	if !node.IsLeaf() {
		if x[node.SplitDimension] <= node.SplitValue {
			return f.extendOriginal(treeID, node.ChildLeft, x, label)
		}
		return f.extendOriginal(treeID, node.ChildRight, x, label)
	}

	node.Counters[label]++
	node.FadingScore++

	return true
}

// extendPartialUpdate implements the PartialUpdate policy: on a genuine
// no-split decision (E<0 or parent_tau+E>tau) it enlarges the box and
// descends (or bumps the leaf counter); on a split-desired-but-denied visit
// it only enlarges the box.
func (f *Forest) extendPartialUpdate(treeID, nodeID int, x []float64, label int) bool {
	d := f.decideSplit(treeID, nodeID, x)
	node := f.arena.Node(nodeID)

	if d.wantsSplit && d.arenaOK && d.budgetOK {
		f.introduceSplit(treeID, nodeID, x, label, d, nil)
		return true
	}

	if d.draw.e < 0 || d.parentTau+d.draw.e > node.Tau {
		enlargeBox(node, x)

		if !node.IsLeaf() {
			if x[node.SplitDimension] <= node.SplitValue {
				return f.extendPartialUpdate(treeID, node.ChildLeft, x, label)
			}
			return f.extendPartialUpdate(treeID, node.ChildRight, x, label)
		}

		node.Counters[label]++
		node.FadingScore++

		return true
	}

	// Split wanted but no room: enlarge box only, matching the table's
	// "On split-desired-but-no-budget" column for PartialUpdate.
	enlargeBox(node, x)

	return true
}

// extendGhost implements the Ghost policy: like PartialUpdate when a split
// is not wanted, but bumps the current node's counter as a "ghost" visit
// when a wanted split is denied, and bumps the counter of every internal
// node it descends through on a no-split visit.
func (f *Forest) extendGhost(treeID, nodeID int, x []float64, label int) bool {
	d := f.decideSplit(treeID, nodeID, x)
	node := f.arena.Node(nodeID)

	if d.wantsSplit && d.arenaOK && d.budgetOK {
		f.introduceSplit(treeID, nodeID, x, label, d, func(parent, n *Node) {
			copy(parent.Counters, n.Counters)
			parent.Counters[label]++
		})
		return true
	}

	if d.draw.e < 0 || d.parentTau+d.draw.e > node.Tau {
		enlargeBox(node, x)

		if !node.IsLeaf() {
			if x[node.SplitDimension] <= node.SplitValue {
				f.extendGhost(treeID, node.ChildLeft, x, label)
			} else {
				f.extendGhost(treeID, node.ChildRight, x, label)
			}
			node.Counters[label]++
			return true
		}

		node.Counters[label]++
		node.FadingScore++

		return true
	}

	// Split wanted but denied: bump this node's counter as a ghost visit.
	node.Counters[label]++
	node.FadingScore++

	return true
}

// extendCounterNoUpdate implements the CounterNoUpdate policy: the box is
// enlarged only on a genuine no-split decision, but the walk always
// descends to a leaf and bumps its counter, regardless of what happened
// above — including immediately after introduceSplit has just re-rooted
// the local subtree under a new parent.
func (f *Forest) extendCounterNoUpdate(treeID, nodeID int, x []float64, label int) bool {
	d := f.decideSplit(treeID, nodeID, x)
	node := f.arena.Node(nodeID)

	if d.wantsSplit && d.arenaOK && d.budgetOK {
		newParent, _ := f.introduceSplit(treeID, nodeID, x, label, d, nil)
		return f.descendAndBumpCounterNoUpdate(newParent, x, label)
	}

	if d.draw.e < 0 || d.parentTau+d.draw.e > node.Tau {
		enlargeBox(node, x)
	}

	return f.descendAndBumpCounterNoUpdate(nodeID, x, label)
}

// descendAndBumpCounterNoUpdate walks from nodeID down to the leaf that x
// falls into and bumps its counter and FadingScore. It is unconditional:
// the CounterNoUpdate table row applies this step regardless of what the
// caller just did above it.
func (f *Forest) descendAndBumpCounterNoUpdate(nodeID int, x []float64, label int) bool {
	node := f.arena.Node(nodeID)

	if !node.IsLeaf() {
		if x[node.SplitDimension] <= node.SplitValue {
			return f.descendAndBumpCounterNoUpdate(node.ChildLeft, x, label)
		}
		return f.descendAndBumpCounterNoUpdate(node.ChildRight, x, label)
	}

	node.Counters[label]++
	node.FadingScore++

	return true
}

// extendBarycentre implements the Barycentre policy: on a split desired but
// denied, it attempts split_barycentre while the arena is heavily
// saturated; failing that, it falls through to PartialUpdate behaviour. It
// also tracks ForcedExtend and may fire split_node per the configured
// trigger.
func (f *Forest) extendBarycentre(treeID, nodeID int, x []float64, label int) bool {
	d := f.decideSplit(treeID, nodeID, x)
	node := f.arena.Node(nodeID)

	if d.wantsSplit && d.arenaOK && d.budgetOK {
		f.introduceSplit(treeID, nodeID, x, label, d, nil)
		return true
	}

	if d.wantsSplit && !(d.arenaOK && d.budgetOK) {
		node.ForcedExtend++

		if f.arenaHeavilySaturated() {
			if f.splitBarycentre(treeID, nodeID, x, label) {
				return true
			}
		}

		if f.shouldFireForcedSplit(treeID, nodeID) {
			f.splitNode(treeID, nodeID, x, label, d)
			return true
		}

		enlargeBox(node, x)
		return true
	}

	if d.draw.e < 0 || d.parentTau+d.draw.e > node.Tau {
		enlargeBox(node, x)

		if !node.IsLeaf() {
			if x[node.SplitDimension] <= node.SplitValue {
				return f.extendBarycentre(treeID, node.ChildLeft, x, label)
			}
			return f.extendBarycentre(treeID, node.ChildRight, x, label)
		}

		node.Counters[label]++
		node.FadingScore++

		return true
	}

	enlargeBox(node, x)

	return true
}

// arenaHeavilySaturated reports whether the arena is tight enough to try a
// non-Mondrian barycentre split: fewer than 5% of nodes free.
func (f *Forest) arenaHeavilySaturated() bool {
	cap := f.arena.NodeCapacity()
	if cap == 0 {
		return true
	}
	return float64(f.arena.Available())/float64(cap) < 0.05
}

// shouldFireForcedSplit implements the fe_split_trigger rules of spec.md
// §4.E: None never fires; Positive fires for any node with ForcedExtend>0;
// Total fires with probability proportional to the node's ForcedExtend
// divided by the total training count so far; SFE divides by the sum of
// ForcedExtend on the descended branch (root to node).
func (f *Forest) shouldFireForcedSplit(treeID, nodeID int) bool {
	node := f.arena.Node(nodeID)

	switch f.cfg.FESplitTrigger {
	case FETriggerNone:
		return false
	case FETriggerPositive:
		return node.ForcedExtend > 0
	case FETriggerTotal:
		if f.totalCount == 0 {
			return false
		}
		p := float64(node.ForcedExtend) / float64(f.totalCount)
		return f.cfg.Rand.Uniform() < p
	case FETriggerSFE:
		sum := f.sumForcedExtendOnBranch(nodeID)
		if sum == 0 {
			return false
		}
		p := float64(node.ForcedExtend) / float64(sum)
		return f.cfg.Rand.Uniform() < p
	default:
		return false
	}
}

func (f *Forest) sumForcedExtendOnBranch(nodeID int) int {
	sum := 0
	for id := nodeID; id != None; id = f.arena.Node(id).Parent {
		sum += f.arena.Node(id).ForcedExtend
	}
	return sum
}
